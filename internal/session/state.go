package session

import (
	"fmt"

	"github.com/p-n-ai/little-star/internal/content"
	"github.com/p-n-ai/little-star/internal/narration"
)

// Screen is the view the learner is on.
type Screen string

const (
	ScreenMenu      Screen = "menu"
	ScreenLoading   Screen = "loading"
	ScreenStudy     Screen = "study"
	ScreenWorksheet Screen = "worksheet"
	ScreenSpelling  Screen = "spelling"
	ScreenQuiz      Screen = "quiz"
	ScreenResult    Screen = "result"
)

// learning reports whether s is one of the four lesson modes.
func (s Screen) learning() bool {
	switch s {
	case ScreenStudy, ScreenWorksheet, ScreenSpelling, ScreenQuiz:
		return true
	}
	return false
}

// ParseMode converts a mode name into a learning Screen.
func ParseMode(s string) (Screen, error) {
	if m := Screen(s); m.learning() {
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidTransition, s)
}

const (
	minBrightness = 0.5
	maxBrightness = 1.1
	minSpeechRate = 0.5
	maxSpeechRate = 1.5
)

// Settings are the per-session learner preferences.
type Settings struct {
	Accent     narration.Accent `json:"accent"`
	DarkMode   bool             `json:"darkMode"`
	Brightness float64          `json:"brightness"`
	SpeechRate float64          `json:"speechRate"`
}

// DefaultSettings returns the settings of a new session.
func DefaultSettings() Settings {
	return Settings{
		Accent:     narration.AccentUS,
		Brightness: 1.0,
		SpeechRate: 0.8,
	}
}

// SettingsPatch carries a partial settings update. Nil fields are left unchanged.
type SettingsPatch struct {
	Accent     *narration.Accent `json:"accent,omitempty"`
	DarkMode   *bool             `json:"darkMode,omitempty"`
	Brightness *float64          `json:"brightness,omitempty"`
	SpeechRate *float64          `json:"speechRate,omitempty"`
}

// Apply returns s updated by p, clamped to the supported ranges.
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.Accent != nil {
		s.Accent = *p.Accent
	}
	if p.DarkMode != nil {
		s.DarkMode = *p.DarkMode
	}
	if p.Brightness != nil {
		s.Brightness = *p.Brightness
	}
	if p.SpeechRate != nil {
		s.SpeechRate = *p.SpeechRate
	}
	return s.Clamped()
}

// Clamped returns s with every field inside its supported range.
func (s Settings) Clamped() Settings {
	if !s.Accent.Valid() {
		s.Accent = narration.AccentUS
	}
	s.Brightness = clamp(s.Brightness, minBrightness, maxBrightness)
	s.SpeechRate = clamp(s.SpeechRate, minSpeechRate, maxSpeechRate)
	return s
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// QuizView is the observable state of a quiz game.
type QuizView struct {
	Index    int                      `json:"index"`
	Total    int                      `json:"total"`
	Options  []content.VocabularyItem `json:"options"`
	Selected string                   `json:"selected,omitempty"`
	Correct  *bool                    `json:"correct,omitempty"`
	Score    int                      `json:"score"`
	Streak   int                      `json:"streak"`
}

// SpellingView is the observable state of a spelling game.
type SpellingView struct {
	Index        int         `json:"index"`
	Total        int         `json:"total"`
	Pool         []string    `json:"pool"`
	Answer       []string    `json:"answer"`
	TargetLength int         `json:"targetLength"`
	Status       SpellStatus `json:"status"`
	Score        int         `json:"score"`
}

// ResultView is the score shown on the result screen.
type ResultView struct {
	Mode    string `json:"mode"`
	Score   int    `json:"score"`
	Total   int    `json:"total"`
	Perfect bool   `json:"perfect"`
}

// Snapshot is a copy of the session state.
type Snapshot struct {
	ID          string                   `json:"id"`
	Version     uint64                   `json:"version"`
	Screen      Screen                   `json:"screen"`
	Subject     content.Subject          `json:"subject,omitempty"`
	Unit        *content.UnitConfig      `json:"unit,omitempty"`
	Items       []content.VocabularyItem `json:"items"`
	CardIndex   int                      `json:"cardIndex"`
	Flipped     bool                     `json:"flipped"`
	Revealed    []int                    `json:"revealed"`
	CustomTopic string                   `json:"customTopic"`
	Message     string                   `json:"message,omitempty"`
	Settings    Settings                 `json:"settings"`
	Quiz        *QuizView                `json:"quiz,omitempty"`
	Spelling    *SpellingView            `json:"spelling,omitempty"`
	Result      *ResultView              `json:"result,omitempty"`
}
