package i18n

// berneseGermanMessages contains all Bernese Swiss German (Bärndütsch) translations
var berneseGermanMessages = map[string]string{
	// Task labels
	"task.shuffle": "Playliste mische",
	"task.export":  "Lieblingslieder-Playliste mache",

	// Progress
	"progress.queued":            "Warte uf e freie Arbeiter...",
	"progress.started":           "Fa a...",
	"progress.retrieved":         "Bis jetz %d Lieder gholt...",
	"progress.shuffling":         "Mische %d Lieder...",
	"progress.replacing":         "Tue di alti gmischti Playliste wäg...",
	"progress.creating_playlist": "Mache d Playliste %s...",
	"progress.added":             "%d/%d Lieder derzue ta",
	"progress.done":              "Fertig",

	// Failures
	"error.task_expired": "D Ufgab isch abgloffe bevor si het chönne starte",
	"error.internal":     "Öppis isch schief gloffe. Probier's haut nomau, bitte.",
}
