package session

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-n-ai/little-star/internal/content"
)

// SpellStatus is the phase of the current spelling item.
type SpellStatus string

const (
	SpellPlaying SpellStatus = "playing"
	SpellCorrect SpellStatus = "correct"
	SpellWrong   SpellStatus = "wrong"
)

type spellingGame struct {
	items    []content.VocabularyItem
	symbolic bool
	index    int
	target   []string // units of the current word
	pool     []string
	answer   []string
	status   SpellStatus
	score    int
}

func newSpellingGame(items []content.VocabularyItem, symbolic bool, rnd Rand) *spellingGame {
	g := &spellingGame{items: items, symbolic: symbolic}
	g.reset(rnd)
	return g
}

func (g *spellingGame) current() content.VocabularyItem {
	return g.items[g.index]
}

func (g *spellingGame) last() bool {
	return g.index >= len(g.items)-1
}

// reset reshuffles the pool for the current item and clears the answer.
func (g *spellingGame) reset(rnd Rand) {
	g.target = spellingUnits(g.current().Word, g.symbolic)
	g.pool = append([]string(nil), g.target...)
	rnd.Shuffle(len(g.pool), func(i, j int) {
		g.pool[i], g.pool[j] = g.pool[j], g.pool[i]
	})
	g.answer = nil
	g.status = SpellPlaying
}

// spellingUnits splits a word into tappable units. Whitespace is removed and text subjects
// are lowercased.
func spellingUnits(word string, symbolic bool) []string {
	cleaned := strings.Join(strings.Fields(word), "")
	if !symbolic {
		cleaned = cases.Lower(language.Und).String(cleaned)
	}
	units := make([]string, 0, len(cleaned))
	for _, r := range cleaned {
		units = append(units, string(r))
	}
	return units
}

// tap moves pool[i] to the answer. It reports whether the answer is now complete.
func (g *spellingGame) tap(i int) (complete bool, err error) {
	if g.status != SpellPlaying {
		return false, ErrNotPlaying
	}
	if i < 0 || i >= len(g.pool) {
		return false, ErrOutOfRange
	}
	g.answer = append(g.answer, g.pool[i])
	g.pool = append(g.pool[:i], g.pool[i+1:]...)
	return len(g.answer) == len(g.target), nil
}

// undo returns the last answer unit to the end of the pool.
func (g *spellingGame) undo() error {
	if g.status != SpellPlaying {
		return ErrNotPlaying
	}
	if len(g.answer) == 0 {
		return nil
	}
	last := g.answer[len(g.answer)-1]
	g.answer = g.answer[:len(g.answer)-1]
	g.pool = append(g.pool, last)
	return nil
}

// check grades a complete answer and records the outcome.
func (g *spellingGame) check() bool {
	got := strings.Join(g.answer, "")
	want := strings.Join(g.target, "")
	var ok bool
	if g.symbolic {
		ok = got == want
	} else {
		fold := cases.Fold()
		ok = fold.String(got) == fold.String(want)
	}
	if ok {
		g.status = SpellCorrect
		g.score++
	} else {
		g.status = SpellWrong
	}
	return ok
}

func (g *spellingGame) view() *SpellingView {
	return &SpellingView{
		Index:        g.index,
		Total:        len(g.items),
		Pool:         append([]string{}, g.pool...),
		Answer:       append([]string{}, g.answer...),
		TargetLength: len(g.target),
		Status:       g.status,
		Score:        g.score,
	}
}
