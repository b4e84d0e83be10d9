package i18n

import (
	"sort"
	"strings"
	"testing"
)

// TestI18nCompleteness verifies that all language profiles contain all message keys
func TestI18nCompleteness(t *testing.T) {
	languages := GetSupportedLanguages()
	if len(languages) == 0 {
		t.Fatal("No supported languages found")
	}

	referenceMessages := getMessages(DefaultLanguage)
	if len(referenceMessages) == 0 {
		t.Fatal("No reference messages found in default language")
	}

	var referenceKeys []string
	for key := range referenceMessages {
		referenceKeys = append(referenceKeys, key)
	}
	sort.Strings(referenceKeys)

	for _, lang := range languages {
		t.Run("Language_"+lang, func(t *testing.T) {
			messages := getMessages(lang)

			var missingKeys []string
			for _, refKey := range referenceKeys {
				if _, exists := messages[refKey]; !exists {
					missingKeys = append(missingKeys, refKey)
				}
			}

			var extraKeys []string
			for langKey := range messages {
				if _, exists := referenceMessages[langKey]; !exists {
					extraKeys = append(extraKeys, langKey)
				}
			}

			if len(missingKeys) > 0 {
				t.Errorf("Language %s is missing keys: %v", lang, missingKeys)
			}
			if len(extraKeys) > 0 {
				t.Errorf("Language %s has extra keys: %v", lang, extraKeys)
			}
		})
	}
}

// TestI18nFormatPlaceholders verifies translations keep the same verbs as English
func TestI18nFormatPlaceholders(t *testing.T) {
	for _, lang := range GetSupportedLanguages() {
		for key, reference := range englishMessages {
			translated := getMessages(lang)[key]
			if strings.Count(translated, "%d") != strings.Count(reference, "%d") ||
				strings.Count(translated, "%s") != strings.Count(reference, "%s") {
				t.Errorf("Language %s key %s has mismatched placeholders: %q vs %q", lang, key, translated, reference)
			}
		}
	}
}

func TestLocalizer_T(t *testing.T) {
	l := NewLocalizer(DefaultLanguage)

	if got := l.T("progress.retrieved", 150); got != "Retrieved 150 tracks so far..." {
		t.Errorf("T(progress.retrieved) = %q", got)
	}

	if got := l.T("progress.added", 100, 250); got != "Added 100/250 tracks" {
		t.Errorf("T(progress.added) = %q", got)
	}

	if got := l.T("no.such.key"); got != "no.such.key" {
		t.Errorf("Unknown key should return the key itself, got %q", got)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"en", DefaultLanguage},
		{"ch_be", BerneseGermanMessages},
		{"en-GB", DefaultLanguage},
		{"gsw", BerneseGermanMessages},
		{"", DefaultLanguage},
		{"not a tag", DefaultLanguage},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Resolve(tt.input); got != tt.expected {
				t.Errorf("Resolve(%q) = %q, expected %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNewLocalizer_BerneseGerman(t *testing.T) {
	l := NewLocalizer(BerneseGermanMessages)
	if l.Language() != BerneseGermanMessages {
		t.Fatalf("Language() = %q, expected %q", l.Language(), BerneseGermanMessages)
	}

	if got := l.T("progress.shuffling", 12); got != "Mische 12 Lieder..." {
		t.Errorf("T(progress.shuffling) = %q", got)
	}
}
