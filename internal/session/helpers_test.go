package session

import (
	"context"
	"sync"
	"testing"

	"github.com/p-n-ai/little-star/internal/content"
	"github.com/p-n-ai/little-star/internal/results"
)

// identityRand leaves every shuffle in input order.
type identityRand struct{}

func (identityRand) Shuffle(int, func(i, j int)) {}

type recordingPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (p *recordingPublisher) Publish(ev Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, ev := range p.events {
		if ev.Type == EventSpeak {
			out = append(out, ev.Utterance.Text)
		}
	}
	return out
}

func (p *recordingPublisher) lastSpoken() string {
	s := p.spoken()
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

func (p *recordingPublisher) celebrations() []Celebration {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Celebration
	for _, ev := range p.events {
		if ev.Type == EventCelebrate {
			out = append(out, *ev.Celebration)
		}
	}
	return out
}

type stubFetcher struct {
	mu     sync.Mutex
	items  []content.VocabularyItem
	err    error
	calls  int
	topics []string
}

func (f *stubFetcher) FetchVocabularyForUnit(_ context.Context, _ string, topic string) ([]content.VocabularyItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.topics = append(f.topics, topic)
	return f.items, f.err
}

func (f *stubFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type harness struct {
	ctrl    *Controller
	sched   *ManualScheduler
	pub     *recordingPublisher
	fetcher *stubFetcher
	results *results.MemoryLogger
	store   *content.Store
}

func newHarness(t *testing.T, rnd Rand) *harness {
	t.Helper()
	store, err := content.DefaultStore()
	if err != nil {
		t.Fatalf("DefaultStore() error = %v", err)
	}
	if rnd == nil {
		rnd = identityRand{}
	}
	h := &harness{
		sched:   NewManualScheduler(),
		pub:     &recordingPublisher{},
		fetcher: &stubFetcher{},
		results: results.NewMemoryLogger(),
		store:   store,
	}
	h.ctrl = NewController("11111111-2222-3333-4444-555555555555", Deps{
		Store:     store,
		Fetcher:   h.fetcher,
		Results:   h.results,
		Publisher: h.pub,
		Scheduler: h.sched,
		NewRand:   func() Rand { return rnd },
	})
	return h
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// loadStatic selects subject and opens a static unit, waiting out the load pause.
func (h *harness) loadStatic(t *testing.T, subject content.Subject, unitID string) {
	t.Helper()
	must(t, h.ctrl.SelectSubject(subject))
	must(t, h.ctrl.LoadUnit(context.Background(), unitID))
	h.sched.Advance(StaticLoadDelay)
	if s := h.ctrl.Snapshot().Screen; s != ScreenStudy {
		t.Fatalf("screen after load = %s, want study", s)
	}
}

// loadItems opens the custom English unit with the given generated items.
func (h *harness) loadItems(t *testing.T, items ...content.VocabularyItem) {
	t.Helper()
	h.fetcher.items = items
	must(t, h.ctrl.SelectSubject(content.SubjectEnglish))
	must(t, h.ctrl.SetCustomTopic("test words"))
	must(t, h.ctrl.LoadUnit(context.Background(), content.CustomUnitID))
	if s := h.ctrl.Snapshot().Screen; s != ScreenStudy {
		t.Fatalf("screen after load = %s, want study", s)
	}
}

func words(ws ...string) []content.VocabularyItem {
	items := make([]content.VocabularyItem, 0, len(ws))
	for _, w := range ws {
		items = append(items, content.NewWordItem(w, w+"-zh", "I see a ", ".", "⭐"))
	}
	return items
}
