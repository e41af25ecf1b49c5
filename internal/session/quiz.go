package session

import (
	"github.com/samber/lo"

	"github.com/p-n-ai/little-star/internal/content"
)

const (
	quizOptionCount = 4
	quizStreakBonus = 2 // streak above this earns one extra point
	quizParticles   = 30
)

type quizGame struct {
	items    []content.VocabularyItem
	index    int
	options  []content.VocabularyItem
	selected string
	answered bool
	correct  bool
	score    int
	streak   int
}

func newQuizGame(items []content.VocabularyItem, rnd Rand) *quizGame {
	g := &quizGame{items: items}
	g.prepare(rnd)
	return g
}

func (g *quizGame) current() content.VocabularyItem {
	return g.items[g.index]
}

func (g *quizGame) last() bool {
	return g.index >= len(g.items)-1
}

// prepare builds the option set for the current item and clears the selection.
func (g *quizGame) prepare(rnd Rand) {
	g.options = quizOptions(g.items, g.index, rnd)
	g.selected = ""
	g.answered = false
	g.correct = false
}

// quizOptions returns up to three distractors with a word different from the current item,
// plus the current item, in random order.
func quizOptions(items []content.VocabularyItem, index int, rnd Rand) []content.VocabularyItem {
	current := items[index]
	distractors := lo.Filter(items, func(item content.VocabularyItem, _ int) bool {
		return item.Word != current.Word
	})
	rnd.Shuffle(len(distractors), func(i, j int) {
		distractors[i], distractors[j] = distractors[j], distractors[i]
	})
	if len(distractors) > quizOptionCount-1 {
		distractors = distractors[:quizOptionCount-1]
	}

	options := append(distractors, current)
	rnd.Shuffle(len(options), func(i, j int) {
		options[i], options[j] = options[j], options[i]
	})
	return options
}

// answer scores word against the current item. It reports false when the question was
// already answered.
func (g *quizGame) answer(word string) (correct, accepted bool) {
	if g.answered {
		return false, false
	}
	g.answered = true
	g.selected = word
	g.correct = word == g.current().Word

	if g.correct {
		g.score += 1
		if g.streak > quizStreakBonus {
			g.score++
		}
		g.streak++
	} else {
		g.streak = 0
	}
	return g.correct, true
}

func (g *quizGame) hasOption(word string) bool {
	return lo.ContainsBy(g.options, func(item content.VocabularyItem) bool {
		return item.Word == word
	})
}

func (g *quizGame) view() *QuizView {
	v := &QuizView{
		Index:    g.index,
		Total:    len(g.items),
		Options:  append([]content.VocabularyItem(nil), g.options...),
		Selected: g.selected,
		Score:    g.score,
		Streak:   g.streak,
	}
	if g.answered {
		correct := g.correct
		v.Correct = &correct
	}
	return v
}
