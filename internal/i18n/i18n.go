// Package i18n provides localized progress and status messages for tasks
package i18n

import (
	"fmt"

	"golang.org/x/text/language"
)

const (
	// DefaultLanguage is the fallback language when no translation is available
	DefaultLanguage = "en"
	// BerneseGermanMessages is a Swiss Dialect spoken in the Canton of Bern
	BerneseGermanMessages = "ch_be"
)

// Supported tags in the same order as GetSupportedLanguages. Bernese German has
// no registered subtag, gsw-CH is the closest match.
var (
	supportedTags = []language.Tag{language.English, language.MustParse("gsw-CH")}
	matcher       = language.NewMatcher(supportedTags)
)

// Localizer provides translation functionality
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer creates a new localizer for the language code or BCP 47 tag given
func NewLocalizer(lang string) *Localizer {
	resolved := Resolve(lang)
	return &Localizer{
		language: resolved,
		messages: getMessages(resolved),
	}
}

// Language returns the resolved language code
func (l *Localizer) Language() string {
	return l.language
}

// T translates a message key, with optional parameters for formatting
func (l *Localizer) T(key string, args ...interface{}) string {
	if message, exists := l.messages[key]; exists {
		return format(message, args)
	}

	if l.language != DefaultLanguage {
		if fallbackMessage, exists := getMessages(DefaultLanguage)[key]; exists {
			return format(fallbackMessage, args)
		}
	}

	return key
}

func format(message string, args []interface{}) string {
	if len(args) > 0 {
		return fmt.Sprintf(message, args...)
	}
	return message
}

// Resolve maps a configured language to one of the supported language codes.
// Exact codes are returned as-is; anything else goes through tag matching.
func Resolve(lang string) string {
	for _, code := range GetSupportedLanguages() {
		if lang == code {
			return code
		}
	}

	tag, err := language.Parse(lang)
	if err != nil {
		return DefaultLanguage
	}

	_, index, confidence := matcher.Match(tag)
	if confidence == language.No {
		return DefaultLanguage
	}
	return GetSupportedLanguages()[index]
}

// GetSupportedLanguages returns list of supported language codes
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, BerneseGermanMessages}
}

// getMessages returns the message map for a given language
func getMessages(language string) map[string]string {
	switch language {
	case DefaultLanguage:
		return englishMessages
	case BerneseGermanMessages:
		return berneseGermanMessages
	default:
		return englishMessages
	}
}
