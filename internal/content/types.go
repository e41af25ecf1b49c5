// Package content holds the lesson catalog and vocabulary tables for every subject,
// and fetches generated vocabulary for custom topics.
package content

import (
	"fmt"
	"strings"
)

// Subject is one of the learnable subjects.
type Subject string

const (
	SubjectEnglish Subject = "english"
	SubjectZhuyin  Subject = "zhuyin"
	SubjectMath    Subject = "math"
)

// Subjects lists every subject in menu order.
var Subjects = []Subject{SubjectEnglish, SubjectZhuyin, SubjectMath}

// ParseSubject converts a case-insensitive name into a Subject.
func ParseSubject(s string) (Subject, error) {
	switch Subject(strings.ToLower(strings.TrimSpace(s))) {
	case SubjectEnglish:
		return SubjectEnglish, nil
	case SubjectZhuyin:
		return SubjectZhuyin, nil
	case SubjectMath:
		return SubjectMath, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSubject, s)
	}
}

// Symbolic reports whether the subject teaches symbols rather than spelled words.
// Symbolic subjects are narrated in Mandarin and spelled character by character.
func (s Subject) Symbolic() bool {
	return s == SubjectZhuyin || s == SubjectMath
}

// VocabularyItem is one teachable fact.
type VocabularyItem struct {
	Word          string `json:"word"`
	Translation   string `json:"translation"`
	SentencePart1 string `json:"sentencePart1"`
	SentencePart2 string `json:"sentencePart2"`
	FullSentence  string `json:"fullSentence"`
	Emoji         string `json:"emoji"`
	ImageURL      string `json:"imageUrl,omitempty"`
}

// UnitConfig is a selectable lesson.
type UnitConfig struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	PromptTopic string `json:"promptTopic"`
	Description string `json:"description"`
	Color       string `json:"color"`
}

// CustomUnitID identifies the unit whose vocabulary is generated from learner input.
const CustomUnitID = "custom"

// NewWordItem builds an English entry whose sentence is split around the word.
func NewWordItem(word, translation, before, after, emoji string) VocabularyItem {
	return VocabularyItem{
		Word:          word,
		Translation:   translation,
		SentencePart1: before,
		SentencePart2: after,
		FullSentence:  before + word + after,
		Emoji:         emoji,
	}
}

// NewZhuyinItem builds a phonetic symbol entry. Only the example word is narrated.
func NewZhuyinItem(symbol, example, emoji string) VocabularyItem {
	return VocabularyItem{
		Word:          symbol,
		Translation:   example,
		SentencePart1: "",
		SentencePart2: " (" + example + ")",
		FullSentence:  example,
		Emoji:         emoji,
	}
}

// NewMathItem builds an arithmetic fact whose answer fills the blank after the question.
func NewMathItem(answer, question, concept, emoji string) VocabularyItem {
	return VocabularyItem{
		Word:          answer,
		Translation:   concept,
		SentencePart1: question + " = ",
		SentencePart2: "",
		FullSentence:  question + " 等於 " + answer,
		Emoji:         emoji,
	}
}
