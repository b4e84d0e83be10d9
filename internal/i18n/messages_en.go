package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Task labels
	"task.shuffle": "Shuffle playlist",
	"task.export":  "Create liked playlist",

	// Progress
	"progress.queued":            "Waiting for a free worker...",
	"progress.started":           "Starting...",
	"progress.retrieved":         "Retrieved %d tracks so far...",
	"progress.shuffling":         "Shuffling %d tracks...",
	"progress.replacing":         "Removing previous shuffled playlist...",
	"progress.creating_playlist": "Creating playlist %s...",
	"progress.added":             "Added %d/%d tracks",
	"progress.done":              "Done",

	// Failures
	"error.task_expired": "Task expired before it was started",
	"error.internal":     "Something went wrong. Please try again.",
}
