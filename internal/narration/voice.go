// Package narration selects voices and languages for spoken feedback and drives a speech
// capability with single-utterance replace semantics.
package narration

import (
	"strings"

	"github.com/p-n-ai/little-star/internal/content"
)

// Accent selects the English narration locale.
type Accent string

const (
	AccentUS Accent = "US"
	AccentUK Accent = "UK"
)

// Valid reports whether a is a known accent.
func (a Accent) Valid() bool {
	return a == AccentUS || a == AccentUK
}

const (
	LangMandarin  = "zh-TW"
	LangEnglishUS = "en-US"
	LangEnglishGB = "en-GB"
)

// Voice is one speech voice available on the learner's device.
type Voice struct {
	Name string `json:"name" validate:"required"`
	Lang string `json:"lang"`
}

// LanguageFor returns the narration language for a subject.
func LanguageFor(subject content.Subject, accent Accent) string {
	if subject.Symbolic() {
		return LangMandarin
	}
	if accent == AccentUK {
		return LangEnglishGB
	}
	return LangEnglishUS
}

// SelectVoice picks the preferred voice for lang. The boolean is false when the platform
// default voice should be used.
func SelectVoice(voices []Voice, lang string) (Voice, bool) {
	switch {
	case lang == LangMandarin:
		for _, v := range voices {
			if (strings.Contains(v.Name, "Google") && strings.Contains(v.Lang, LangMandarin)) ||
				strings.Contains(v.Name, "Hanhan") || strings.Contains(v.Name, "Yating") {
				return v, true
			}
		}
		for _, v := range voices {
			if strings.Contains(v.Lang, LangMandarin) {
				return v, true
			}
		}
	case strings.HasPrefix(lang, "en"):
		for _, v := range voices {
			if v.Lang == lang && (strings.Contains(v.Name, "Google") || strings.Contains(v.Name, "Microsoft")) {
				return v, true
			}
		}
		for _, v := range voices {
			if v.Lang == lang {
				return v, true
			}
		}
	}
	return Voice{}, false
}
