// Package session runs one learner's lesson: screen transitions, the four learning modes,
// narration and celebration events.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/p-n-ai/little-star/internal/content"
	"github.com/p-n-ai/little-star/internal/narration"
	"github.com/p-n-ai/little-star/internal/results"
)

// Presentational pauses.
const (
	StaticLoadDelay      = 500 * time.Millisecond
	FailureReturnDelay   = 2 * time.Second
	QuizAdvanceDelay     = 1500 * time.Millisecond
	SpellingCorrectDelay = 2000 * time.Millisecond
	SpellingWrongDelay   = 1500 * time.Millisecond
)

// Learner-facing messages.
const (
	MsgBlankTopic  = "Please enter a topic!"
	MsgFetchFailed = "Oops! The magic failed. Try again."
)

const recordTimeout = 5 * time.Second

// FlashcardFrontSentenceRunes is the sentence length below which the front of a card narrates
// the sentence instead of the word.
const FlashcardFrontSentenceRunes = 5

// Card sides for narration.
const (
	SideFront = "front"
	SideBack  = "back"
)

// VocabularyFetcher generates vocabulary for a free-text topic.
type VocabularyFetcher interface {
	FetchVocabularyForUnit(ctx context.Context, owner, topic string) ([]content.VocabularyItem, error)
}

// Deps are the collaborators shared by every controller.
type Deps struct {
	Store     *content.Store
	Fetcher   VocabularyFetcher
	Results   results.Logger
	Publisher Publisher
	Scheduler Scheduler
	// NewRand returns the random source of a new session. Nil selects a randomly seeded one.
	NewRand func() Rand
}

func (d Deps) withDefaults() Deps {
	if d.Results == nil {
		d.Results = results.NopLogger{}
	}
	if d.Publisher == nil {
		d.Publisher = nopPublisher{}
	}
	if d.Scheduler == nil {
		d.Scheduler = SystemScheduler{}
	}
	if d.NewRand == nil {
		d.NewRand = func() Rand { return NewRand(RandomSeed()) }
	}
	return d
}

// Controller owns the state of one learner session. All methods are safe for concurrent use.
type Controller struct {
	id       string
	deps     Deps
	rnd      Rand
	narrator *narration.Narrator
	log      *slog.Logger

	mu       sync.Mutex
	closed   bool
	version  uint64
	epoch    uint64 // bumped whenever pending delayed calls become stale
	timers   map[uint64]Timer
	timerSeq uint64

	screen      Screen
	subject     content.Subject
	unit        *content.UnitConfig
	items       []content.VocabularyItem
	cardIndex   int
	flipped     bool
	revealed    map[int]bool
	customTopic string
	message     string
	settings    Settings
	quiz        *quizGame
	spelling    *spellingGame
	result      *ResultView
}

// NewController creates a controller on the menu screen.
func NewController(id string, deps Deps) *Controller {
	deps = deps.withDefaults()
	c := &Controller{
		id:       id,
		deps:     deps,
		rnd:      deps.NewRand(),
		log:      slog.With("session_id", id),
		timers:   make(map[uint64]Timer),
		screen:   ScreenMenu,
		revealed: make(map[int]bool),
		settings: DefaultSettings(),
	}
	c.narrator = narration.NewNarrator(speechSink{session: id, pub: deps.Publisher})
	return c
}

// ID returns the session id.
func (c *Controller) ID() string { return c.id }

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{
		ID:          c.id,
		Version:     c.version,
		Screen:      c.screen,
		Subject:     c.subject,
		Items:       append([]content.VocabularyItem{}, c.items...),
		CardIndex:   c.cardIndex,
		Flipped:     c.flipped,
		Revealed:    []int{},
		CustomTopic: c.customTopic,
		Message:     c.message,
		Settings:    c.settings,
	}
	if c.unit != nil {
		u := *c.unit
		s.Unit = &u
	}
	for i := range c.revealed {
		s.Revealed = append(s.Revealed, i)
	}
	slices.Sort(s.Revealed)
	if c.screen == ScreenQuiz && c.quiz != nil {
		s.Quiz = c.quiz.view()
	}
	if c.screen == ScreenSpelling && c.spelling != nil {
		s.Spelling = c.spelling.view()
	}
	if c.screen == ScreenResult && c.result != nil {
		r := *c.result
		s.Result = &r
	}
	return s
}

// changed bumps the version and publishes the new state.
func (c *Controller) changed() {
	c.version++
	snap := c.snapshotLocked()
	c.deps.Publisher.Publish(Event{Type: EventState, Session: c.id, At: time.Now(), State: &snap})
}

func (c *Controller) celebrate(cel Celebration) {
	c.deps.Publisher.Publish(Event{Type: EventCelebrate, Session: c.id, At: time.Now(), Celebration: &cel})
}

func (c *Controller) say(text string) {
	c.narrator.Speak(text, narration.LanguageFor(c.subject, c.settings.Accent), c.settings.SpeechRate)
}

// after runs f once d has elapsed, unless the session moved on in the meantime.
// f runs with the lock held; the function it returns, if any, runs after unlocking.
func (c *Controller) after(d time.Duration, f func() func()) {
	epoch := c.epoch
	c.timerSeq++
	key := c.timerSeq
	c.timers[key] = c.deps.Scheduler.AfterFunc(d, func() {
		c.mu.Lock()
		delete(c.timers, key)
		if c.closed || c.epoch != epoch {
			c.mu.Unlock()
			return
		}
		then := f()
		c.mu.Unlock()
		if then != nil {
			then()
		}
	})
}

// invalidate cancels every pending delayed call.
func (c *Controller) invalidate() {
	c.epoch++
	for key, t := range c.timers {
		t.Stop()
		delete(c.timers, key)
	}
}

func (c *Controller) guard() error {
	if c.closed {
		return ErrClosed
	}
	return nil
}

func (c *Controller) requireScreen(want ...Screen) error {
	if err := c.guard(); err != nil {
		return err
	}
	if !slices.Contains(want, c.screen) {
		return fmt.Errorf("%w: not allowed on %s", ErrInvalidTransition, c.screen)
	}
	return nil
}

// SelectSubject picks the subject on the subject-less menu.
func (c *Controller) SelectSubject(subject content.Subject) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenMenu); err != nil {
		return err
	}
	if c.subject != "" {
		return fmt.Errorf("%w: subject already selected", ErrInvalidTransition)
	}
	if _, err := content.ParseSubject(string(subject)); err != nil {
		return err
	}
	c.subject = subject
	c.message = ""
	c.changed()
	return nil
}

// SetCustomTopic stores the learner's topic text for the custom unit.
func (c *Controller) SetCustomTopic(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenMenu); err != nil {
		return err
	}
	c.customTopic = text
	c.changed()
	return nil
}

// LoadUnit opens a unit of the selected subject. Static units arrive after a short pause;
// other units are generated, with the controller unlocked while the request runs.
func (c *Controller) LoadUnit(ctx context.Context, unitID string) error {
	c.mu.Lock()

	if err := c.guard(); err != nil {
		c.mu.Unlock()
		return err
	}
	if c.screen == ScreenLoading {
		c.mu.Unlock()
		return ErrLoadInFlight
	}
	if c.screen != ScreenMenu {
		c.mu.Unlock()
		return fmt.Errorf("%w: load from %s", ErrInvalidTransition, c.screen)
	}
	if c.subject == "" {
		c.mu.Unlock()
		return ErrNoSubject
	}
	unit, ok := c.deps.Store.Unit(c.subject, unitID)
	if !ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s/%s", content.ErrUnknownUnit, c.subject, unitID)
	}

	c.invalidate()
	c.screen = ScreenLoading
	c.message = "Opening " + unit.Title + "..."
	c.unit = &unit

	if items, ok := c.deps.Store.Items(c.subject, unitID); ok {
		c.changed()
		c.after(StaticLoadDelay, func() func() {
			c.enterLesson(items)
			return nil
		})
		c.mu.Unlock()
		return nil
	}

	topic := unit.PromptTopic
	if unit.ID == content.CustomUnitID {
		topic = c.customTopic
	}
	if strings.TrimSpace(topic) == "" {
		c.screen = ScreenMenu
		c.message = MsgBlankTopic
		c.unit = nil
		c.changed()
		c.mu.Unlock()
		return ErrBlankTopic
	}

	c.changed()
	epoch := c.epoch
	fetcher := c.deps.Fetcher
	c.mu.Unlock()

	var items []content.VocabularyItem
	var err error
	if fetcher == nil {
		err = content.ErrMissingAPIKey
	} else {
		items, err = fetcher.FetchVocabularyForUnit(ctx, c.id, topic)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.epoch != epoch {
		c.log.Info("discarding vocabulary for abandoned load", "unit", unit.ID)
		return nil
	}
	if err == nil && len(items) == 0 {
		err = errors.New("no items returned")
	}
	if err != nil {
		c.log.Error("vocabulary fetch failed", "unit", unit.ID, "topic", topic, "error", err)
		c.message = MsgFetchFailed
		c.changed()
		c.after(FailureReturnDelay, func() func() {
			c.screen = ScreenMenu
			c.unit = nil
			c.changed()
			return nil
		})
		return fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}

	c.enterLesson(items)
	return nil
}

func (c *Controller) enterLesson(items []content.VocabularyItem) {
	c.items = items
	c.cardIndex = 0
	c.flipped = false
	c.revealed = make(map[int]bool)
	c.message = ""
	c.quiz = nil
	c.spelling = nil
	c.screen = ScreenStudy
	c.changed()
}

// GoHome abandons the lesson and returns to the subject choice.
func (c *Controller) GoHome() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard(); err != nil {
		return err
	}
	c.invalidate()
	c.screen = ScreenMenu
	c.subject = ""
	c.unit = nil
	c.items = nil
	c.cardIndex = 0
	c.flipped = false
	c.revealed = make(map[int]bool)
	c.customTopic = ""
	c.message = ""
	c.quiz = nil
	c.spelling = nil
	c.result = nil
	c.changed()
	return nil
}

// SwitchMode moves between the learning modes. Entering spelling or quiz starts a new game.
// From the result screen only the quiz can be replayed.
func (c *Controller) SwitchMode(mode Screen) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard(); err != nil {
		return err
	}
	if !mode.learning() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidTransition, mode)
	}
	switch {
	case c.screen == ScreenResult && mode == ScreenQuiz:
	case c.screen.learning():
		if c.screen == mode {
			return nil
		}
	default:
		return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, c.screen, mode)
	}
	if len(c.items) == 0 {
		return ErrNoLesson
	}

	c.invalidate()
	c.enterMode(mode)
	c.changed()
	return nil
}

func (c *Controller) enterMode(mode Screen) {
	c.screen = mode
	c.flipped = false
	switch mode {
	case ScreenQuiz:
		c.quiz = newQuizGame(c.items, c.rnd)
		c.spelling = nil
	case ScreenSpelling:
		c.spelling = newSpellingGame(c.items, c.subject.Symbolic(), c.rnd)
		c.quiz = nil
	default:
		c.quiz = nil
		c.spelling = nil
	}
}

// CompleteGame records the score of the game being played and shows the result screen.
func (c *Controller) CompleteGame(score, total int) error {
	c.mu.Lock()
	if err := c.requireScreen(ScreenQuiz, ScreenSpelling); err != nil {
		c.mu.Unlock()
		return err
	}
	c.invalidate()
	record := c.completeGameLocked(score, total)
	c.mu.Unlock()

	record()
	return nil
}

// completeGameLocked switches to the result screen and returns the call that logs the result.
func (c *Controller) completeGameLocked(score, total int) func() {
	mode := results.ModeQuiz
	if c.screen == ScreenSpelling {
		mode = results.ModeSpelling
	}

	c.result = &ResultView{Mode: mode, Score: score, Total: total, Perfect: score == total}
	c.screen = ScreenResult
	c.quiz = nil
	c.spelling = nil
	c.changed()
	if score == total {
		c.celebrate(Celebration{})
	}

	r := results.GameResult{
		SessionID: c.id,
		Subject:   string(c.subject),
		Mode:      mode,
		Score:     score,
		Total:     total,
		CreatedAt: time.Now(),
	}
	if c.unit != nil {
		r.UnitID = c.unit.ID
	}
	logger := c.deps.Results
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := logger.LogResult(ctx, r); err != nil {
			c.log.Warn("failed to log game result", "mode", r.Mode, "error", err)
		}
	}
}

// Results returns the recent games of this session, newest first.
func (c *Controller) Results(ctx context.Context, limit int) ([]results.GameResult, error) {
	return c.deps.Results.Recent(ctx, c.id, limit)
}

// UpdateSettings applies a settings patch.
func (c *Controller) UpdateSettings(p SettingsPatch) (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard(); err != nil {
		return Settings{}, err
	}
	c.settings = c.settings.Apply(p)
	c.changed()
	return c.settings, nil
}

// SetVoices stores the voices available on the learner's device.
func (c *Controller) SetVoices(voices []narration.Voice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.guard(); err != nil {
		return err
	}
	c.narrator.SetVoices(voices)
	return nil
}

// Close cancels pending calls and rejects further operations.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.invalidate()
	c.closed = true
	c.narrator.Stop()
}

// Flashcards

// NextCard advances one card; past the last card the lesson moves on to the worksheet.
func (c *Controller) NextCard() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenStudy); err != nil {
		return err
	}
	c.flipped = false
	if c.cardIndex < len(c.items)-1 {
		c.cardIndex++
	} else {
		c.enterMode(ScreenWorksheet)
	}
	c.changed()
	return nil
}

// PrevCard goes back one card. It does nothing on the first card.
func (c *Controller) PrevCard() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenStudy); err != nil {
		return err
	}
	if c.cardIndex > 0 {
		c.cardIndex--
		c.flipped = false
		c.changed()
	}
	return nil
}

// FlipCard toggles the current card.
func (c *Controller) FlipCard() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenStudy); err != nil {
		return err
	}
	c.flipped = !c.flipped
	c.changed()
	return nil
}

// SpeakCard narrates one side of the current card. An empty side means the visible one.
func (c *Controller) SpeakCard(side string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenStudy); err != nil {
		return err
	}
	if side == "" {
		side = SideFront
		if c.flipped {
			side = SideBack
		}
	}
	item := c.items[c.cardIndex]
	switch side {
	case SideFront:
		c.say(FrontNarration(item))
	case SideBack:
		c.say(item.FullSentence)
	default:
		return fmt.Errorf("%w: unknown card side %q", ErrOutOfRange, side)
	}
	return nil
}

// FrontNarration is what the front of a flashcard says.
func FrontNarration(item content.VocabularyItem) string {
	if len([]rune(item.FullSentence)) < FlashcardFrontSentenceRunes {
		return item.FullSentence
	}
	return item.Word
}

// Worksheet

// ToggleReveal shows or hides the answer of worksheet item i.
func (c *Controller) ToggleReveal(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenWorksheet); err != nil {
		return err
	}
	if i < 0 || i >= len(c.items) {
		return ErrOutOfRange
	}
	if c.revealed[i] {
		delete(c.revealed, i)
	} else {
		c.revealed[i] = true
	}
	c.changed()
	return nil
}

// SpeakWorksheetItem narrates the full sentence of worksheet item i.
func (c *Controller) SpeakWorksheetItem(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenWorksheet); err != nil {
		return err
	}
	if i < 0 || i >= len(c.items) {
		return ErrOutOfRange
	}
	c.say(c.items[i].FullSentence)
	return nil
}

// ExportWorksheet writes the loaded lesson as a workbook.
func (c *Controller) ExportWorksheet(w io.Writer) error {
	c.mu.Lock()
	if err := c.guard(); err != nil {
		c.mu.Unlock()
		return err
	}
	if len(c.items) == 0 {
		c.mu.Unlock()
		return ErrNoLesson
	}
	items := append([]content.VocabularyItem(nil), c.items...)
	var title string
	if c.unit != nil {
		title = c.unit.Title
	}
	c.mu.Unlock()

	return WriteWorksheet(w, title, items)
}

// Quiz

// AnswerQuiz picks an option for the current question. A second pick for the same
// question is ignored.
func (c *Controller) AnswerQuiz(word string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenQuiz); err != nil {
		return err
	}
	g := c.quiz
	if g.answered {
		return nil
	}
	if !g.hasOption(word) {
		return fmt.Errorf("%w: %q", ErrUnknownOption, word)
	}

	item := g.current()
	correct, _ := g.answer(word)
	if correct {
		c.celebrate(Celebration{Emojis: []string{item.Emoji, "⭐", "✨"}, Particles: quizParticles})
	}
	switch {
	case c.subject.Symbolic():
		c.say(item.FullSentence)
	case correct:
		c.say("Correct! " + item.Word)
	default:
		c.say("Oops. The answer is " + item.Word)
	}
	c.changed()

	c.after(QuizAdvanceDelay, func() func() {
		if !g.last() {
			g.index++
			g.prepare(c.rnd)
			c.changed()
			return nil
		}
		return c.completeGameLocked(g.score, len(g.items))
	})
	return nil
}

// Spelling

// TapLetter moves pool unit i into the answer and grades a complete answer.
func (c *Controller) TapLetter(i int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenSpelling); err != nil {
		return err
	}
	g := c.spelling
	complete, err := g.tap(i)
	if err != nil {
		return err
	}
	if !complete {
		c.changed()
		return nil
	}

	item := g.current()
	if g.check() {
		if c.subject.Symbolic() {
			c.say("答對了！ " + item.FullSentence)
		} else {
			c.say("Correct! " + item.Word)
		}
		c.celebrate(Celebration{Emojis: []string{item.Emoji, "🎉", "🅰️"}})
		c.changed()
		c.after(SpellingCorrectDelay, func() func() {
			if !g.last() {
				g.index++
				g.reset(c.rnd)
				c.changed()
				return nil
			}
			return c.completeGameLocked(g.score, len(g.items))
		})
		return nil
	}

	if c.subject.Symbolic() {
		c.say("再試一次")
	} else {
		c.say("Try again. " + item.Word)
	}
	c.changed()
	c.after(SpellingWrongDelay, func() func() {
		g.reset(c.rnd)
		c.changed()
		return nil
	})
	return nil
}

// UndoLetter returns the last answer unit to the pool.
func (c *Controller) UndoLetter() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenSpelling); err != nil {
		return err
	}
	before := len(c.spelling.answer)
	if err := c.spelling.undo(); err != nil {
		return err
	}
	if len(c.spelling.answer) != before {
		c.changed()
	}
	return nil
}

// SpeakSpellingWord narrates the word being spelled.
func (c *Controller) SpeakSpellingWord() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.requireScreen(ScreenSpelling); err != nil {
		return err
	}
	c.say(c.spelling.current().Word)
	return nil
}
