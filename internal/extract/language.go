package extract

import (
	"strings"
	"unicode"

	"docchat/internal/models"
)

// Croatian-specific letters and high-frequency function words; Serbian and
// Bosnian score the same and map to "hr" like the rest of the family.
var (
	hrLetters   = "čćđšžČĆĐŠŽ"
	hrStopwords = map[string]struct{}{
		"je": {}, "i": {}, "u": {}, "na": {}, "se": {}, "da": {},
		"su": {}, "za": {}, "od": {}, "koji": {}, "nije": {}, "ili": {},
	}
	enStopwords = map[string]struct{}{
		"the": {}, "and": {}, "of": {}, "to": {}, "is": {}, "in": {},
		"that": {}, "it": {}, "for": {}, "are": {}, "was": {}, "with": {},
	}
)

// DetectLanguage guesses the language of a text sample from the first
// thousand characters. Returns "" when the sample is too ambiguous; the
// caller falls back to the configured default.
func DetectLanguage(text string) string {
	sample := text
	if len(sample) > 1000 {
		sample = sample[:1000]
	}
	if strings.TrimSpace(sample) == "" {
		return ""
	}

	if strings.ContainsAny(sample, hrLetters) {
		return models.LanguageHR
	}

	hrScore, enScore := 0, 0
	for _, word := range strings.FieldsFunc(strings.ToLower(sample), func(r rune) bool {
		return !unicode.IsLetter(r)
	}) {
		if _, ok := hrStopwords[word]; ok {
			hrScore++
		}
		if _, ok := enStopwords[word]; ok {
			enScore++
		}
	}
	switch {
	case hrScore > enScore:
		return models.LanguageHR
	case enScore > hrScore:
		return models.LanguageEN
	default:
		return ""
	}
}
