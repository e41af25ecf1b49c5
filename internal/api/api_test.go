package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/p-n-ai/little-star/internal/api"
	"github.com/p-n-ai/little-star/internal/content"
	"github.com/p-n-ai/little-star/internal/narration"
	"github.com/p-n-ai/little-star/internal/results"
	"github.com/p-n-ai/little-star/internal/session"
	"github.com/p-n-ai/little-star/internal/stream"
)

type inOrder struct{}

func (inOrder) Shuffle(int, func(i, j int)) {}

type fakeFetcher struct {
	mu    sync.Mutex
	items []content.VocabularyItem
	err   error
}

func (f *fakeFetcher) FetchVocabularyForUnit(context.Context, string, string) ([]content.VocabularyItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.items, f.err
}

type fakeTTS struct {
	audio []byte
	err   error
}

func (f fakeTTS) Synthesize(context.Context, string, string) ([]byte, error) {
	return f.audio, f.err
}

type checker struct{ err error }

func (c checker) HealthCheck(context.Context) error { return c.err }

type testEnv struct {
	srv     *httptest.Server
	sched   *session.ManualScheduler
	fetcher *fakeFetcher
	results *results.MemoryLogger
	hub     *stream.Hub
}

func newEnv(t *testing.T, mutate ...func(*api.Deps)) *testEnv {
	t.Helper()
	store, err := content.DefaultStore()
	require.NoError(t, err)

	env := &testEnv{
		sched:   session.NewManualScheduler(),
		fetcher: &fakeFetcher{},
		results: results.NewMemoryLogger(),
		hub:     stream.NewHub(),
	}
	registry := session.NewRegistry(session.Deps{
		Store:     store,
		Fetcher:   env.fetcher,
		Results:   env.results,
		Publisher: env.hub,
		Scheduler: env.sched,
		NewRand:   func() session.Rand { return inOrder{} },
	}, session.WithForgetter(env.hub))

	deps := api.Deps{Registry: registry, Store: store, Hub: env.hub}
	for _, m := range mutate {
		m(&deps)
	}
	env.srv = httptest.NewServer(api.NewRouter(deps))
	t.Cleanup(env.srv.Close)
	return env
}

// do sends a JSON request and returns the status and raw body.
func (e *testEnv) do(t *testing.T, method, path string, body any) (int, []byte) {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	require.NoError(t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func (e *testEnv) state(t *testing.T, method, path string, body any) session.Snapshot {
	t.Helper()
	status, data := e.do(t, method, path, body)
	require.Equal(t, http.StatusOK, status, "body: %s", data)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	return snap
}

func (e *testEnv) errorCode(t *testing.T, wantStatus int, method, path string, body any) string {
	t.Helper()
	status, data := e.do(t, method, path, body)
	require.Equal(t, wantStatus, status, "body: %s", data)
	var eb api.ErrorBody
	require.NoError(t, json.Unmarshal(data, &eb))
	assert.NotEmpty(t, eb.Error.Message)
	return eb.Error.Code
}

func (e *testEnv) create(t *testing.T) string {
	t.Helper()
	status, data := e.do(t, http.MethodPost, "/api/sessions", nil)
	require.Equal(t, http.StatusCreated, status)
	var snap session.Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	require.Equal(t, session.ScreenMenu, snap.Screen)
	return "/api/sessions/" + snap.ID
}

func (e *testEnv) openStarter(t *testing.T, base string) {
	t.Helper()
	e.state(t, http.MethodPost, base+"/subject", map[string]string{"subject": "english"})
	snap := e.state(t, http.MethodPost, base+"/units/b1_starter", nil)
	require.Equal(t, session.ScreenLoading, snap.Screen)
	e.sched.Advance(session.StaticLoadDelay)
}

func TestHealth(t *testing.T) {
	env := newEnv(t, func(d *api.Deps) {
		d.Checks = map[string]api.HealthChecker{"cache": checker{}}
	})
	status, body := env.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	status, body = env.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ready"}`, string(body))

	failing := newEnv(t, func(d *api.Deps) {
		d.Checks = map[string]api.HealthChecker{"database": checker{err: errors.New("down")}}
	})
	status, body = failing.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Contains(t, string(body), "database")
}

func TestCatalog(t *testing.T) {
	env := newEnv(t)

	status, body := env.do(t, http.MethodGet, "/api/subjects", nil)
	require.Equal(t, http.StatusOK, status)
	var subjects struct {
		Subjects []struct {
			ID       string `json:"id"`
			Symbolic bool   `json:"symbolic"`
			Units    int    `json:"units"`
		} `json:"subjects"`
	}
	require.NoError(t, json.Unmarshal(body, &subjects))
	require.Len(t, subjects.Subjects, 3)
	assert.Equal(t, "english", subjects.Subjects[0].ID)
	assert.Equal(t, 9, subjects.Subjects[0].Units)
	assert.True(t, subjects.Subjects[1].Symbolic)

	status, body = env.do(t, http.MethodGet, "/api/subjects/math/units", nil)
	require.Equal(t, http.StatusOK, status)
	var units struct {
		Units []content.UnitConfig `json:"units"`
	}
	require.NoError(t, json.Unmarshal(body, &units))
	assert.Len(t, units.Units, 6)

	assert.Equal(t, "unknown_subject", env.errorCode(t, http.StatusBadRequest, http.MethodGet, "/api/subjects/art/units", nil))
}

func TestSessionLifecycle(t *testing.T) {
	env := newEnv(t)
	base := env.create(t)

	snap := env.state(t, http.MethodGet, base, nil)
	assert.Equal(t, session.ScreenMenu, snap.Screen)
	assert.Equal(t, 0.8, snap.Settings.SpeechRate)

	status, _ := env.do(t, http.MethodDelete, base, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, "session_not_found", env.errorCode(t, http.StatusNotFound, http.MethodGet, base, nil))
	assert.Equal(t, "session_not_found", env.errorCode(t, http.StatusNotFound, http.MethodDelete, base, nil))
}

func TestLessonFlow(t *testing.T) {
	env := newEnv(t)
	base := env.create(t)
	env.openStarter(t, base)

	snap := env.state(t, http.MethodGet, base, nil)
	require.Equal(t, session.ScreenStudy, snap.Screen)
	require.Len(t, snap.Items, 12)
	assert.Equal(t, "one", snap.Items[0].Word)

	snap = env.state(t, http.MethodPost, base+"/cards/next", nil)
	assert.Equal(t, 1, snap.CardIndex)
	snap = env.state(t, http.MethodPost, base+"/cards/flip", nil)
	assert.True(t, snap.Flipped)
	snap = env.state(t, http.MethodPost, base+"/cards/prev", nil)
	assert.Equal(t, 0, snap.CardIndex)

	status, _ := env.do(t, http.MethodPost, base+"/cards/speak?side=front", nil)
	assert.Equal(t, http.StatusNoContent, status)

	snap = env.state(t, http.MethodPost, base+"/mode", map[string]string{"mode": "worksheet"})
	assert.Equal(t, session.ScreenWorksheet, snap.Screen)
	snap = env.state(t, http.MethodPost, base+"/worksheet/2/reveal", nil)
	assert.Equal(t, []int{2}, snap.Revealed)
	assert.Equal(t, "out_of_range", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/worksheet/40/reveal", nil))
	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/worksheet/two/reveal", nil))
	status, _ = env.do(t, http.MethodPost, base+"/worksheet/2/speak", nil)
	assert.Equal(t, http.StatusNoContent, status)

	snap = env.state(t, http.MethodPost, base+"/home", nil)
	assert.Equal(t, session.ScreenMenu, snap.Screen)
	assert.Empty(t, snap.Items)
}

func TestQuizOverHTTP(t *testing.T) {
	env := newEnv(t)
	env.fetcher.items = []content.VocabularyItem{
		content.NewWordItem("red", "紅", "It is ", ".", "🔴"),
		content.NewWordItem("blue", "藍", "It is ", ".", "🔵"),
	}
	base := env.create(t)
	env.state(t, http.MethodPost, base+"/subject", map[string]string{"subject": "english"})
	env.state(t, http.MethodPost, base+"/topic", map[string]string{"topic": "colors"})
	snap := env.state(t, http.MethodPost, base+"/units/custom", nil)
	require.Equal(t, session.ScreenStudy, snap.Screen)

	snap = env.state(t, http.MethodPost, base+"/mode", map[string]string{"mode": "quiz"})
	require.NotNil(t, snap.Quiz)
	assert.Len(t, snap.Quiz.Options, 2)

	assert.Equal(t, "unknown_option", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/quiz/answer", map[string]string{"word": "green"}))
	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/quiz/answer", map[string]string{}))

	for _, word := range []string{"red", "blue"} {
		snap = env.state(t, http.MethodPost, base+"/quiz/answer", map[string]string{"word": word})
		require.NotNil(t, snap.Quiz.Correct)
		assert.True(t, *snap.Quiz.Correct)
		env.sched.Advance(session.QuizAdvanceDelay)
	}

	snap = env.state(t, http.MethodGet, base, nil)
	require.Equal(t, session.ScreenResult, snap.Screen)
	assert.Equal(t, session.ResultView{Mode: results.ModeQuiz, Score: 2, Total: 2, Perfect: true}, *snap.Result)

	status, body := env.do(t, http.MethodGet, base+"/results?limit=5", nil)
	require.Equal(t, http.StatusOK, status)
	var res struct {
		Results []results.GameResult `json:"results"`
	}
	require.NoError(t, json.Unmarshal(body, &res))
	require.Len(t, res.Results, 1)
	assert.Equal(t, 2, res.Results[0].Score)
	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodGet, base+"/results?limit=-1", nil))

	// Only the quiz can be replayed from the result screen.
	assert.Equal(t, "invalid_transition", env.errorCode(t, http.StatusConflict, http.MethodPost, base+"/mode", map[string]string{"mode": "study"}))
	snap = env.state(t, http.MethodPost, base+"/mode", map[string]string{"mode": "quiz"})
	assert.Equal(t, 0, snap.Quiz.Score)
}

func TestSpellingOverHTTP(t *testing.T) {
	env := newEnv(t)
	env.fetcher.items = []content.VocabularyItem{content.NewWordItem("ox", "牛", "An ", ".", "🐂")}
	base := env.create(t)
	env.state(t, http.MethodPost, base+"/subject", map[string]string{"subject": "english"})
	env.state(t, http.MethodPost, base+"/topic", map[string]string{"topic": "farm"})
	env.state(t, http.MethodPost, base+"/units/custom", nil)
	snap := env.state(t, http.MethodPost, base+"/mode", map[string]string{"mode": "spelling"})
	require.Equal(t, []string{"o", "x"}, snap.Spelling.Pool)

	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/spelling/tap", map[string]any{}))
	snap = env.state(t, http.MethodPost, base+"/spelling/tap", map[string]int{"index": 0})
	assert.Equal(t, []string{"o"}, snap.Spelling.Answer)
	snap = env.state(t, http.MethodPost, base+"/spelling/undo", nil)
	assert.Empty(t, snap.Spelling.Answer)
	assert.Equal(t, []string{"x", "o"}, snap.Spelling.Pool)

	status, _ := env.do(t, http.MethodPost, base+"/spelling/speak", nil)
	assert.Equal(t, http.StatusNoContent, status)

	env.state(t, http.MethodPost, base+"/spelling/tap", map[string]int{"index": 1})
	snap = env.state(t, http.MethodPost, base+"/spelling/tap", map[string]int{"index": 0})
	assert.Equal(t, session.SpellCorrect, snap.Spelling.Status)
	assert.Equal(t, "not_playing", env.errorCode(t, http.StatusConflict, http.MethodPost, base+"/spelling/tap", map[string]int{"index": 0}))
}

func TestErrorMapping(t *testing.T) {
	env := newEnv(t)
	base := env.create(t)

	assert.Equal(t, "no_subject", env.errorCode(t, http.StatusConflict, http.MethodPost, base+"/units/b1_starter", nil))
	assert.Equal(t, "invalid_transition", env.errorCode(t, http.StatusConflict, http.MethodPost, base+"/cards/next", nil))
	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/subject", map[string]string{"subject": "art"}))
	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/subject", `{"subject":"english","extra":1}`))
	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/subject", `{`))

	env.state(t, http.MethodPost, base+"/subject", map[string]string{"subject": "english"})
	assert.Equal(t, "unknown_unit", env.errorCode(t, http.StatusNotFound, http.MethodPost, base+"/units/nope", nil))
	assert.Equal(t, "blank_topic", env.errorCode(t, http.StatusBadRequest, http.MethodPost, base+"/units/custom", nil))

	env.state(t, http.MethodPost, base+"/topic", map[string]string{"topic": "space"})
	env.fetcher.err = errors.New("quota")
	assert.Equal(t, "fetch_failed", env.errorCode(t, http.StatusBadGateway, http.MethodPost, base+"/units/custom", nil))
	assert.Equal(t, "load_in_flight", env.errorCode(t, http.StatusConflict, http.MethodPost, base+"/units/custom", nil))
	env.sched.Advance(session.FailureReturnDelay)

	env.fetcher.err = fmt.Errorf("wrapped: %w", content.ErrBudgetExhausted)
	assert.Equal(t, "budget_exhausted", env.errorCode(t, http.StatusTooManyRequests, http.MethodPost, base+"/units/custom", nil))
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("x: %w", session.ErrSessionNotFound), http.StatusNotFound},
		{session.ErrClosed, http.StatusGone},
		{fmt.Errorf("%w: %w", session.ErrFetchFailed, content.ErrMissingAPIKey), http.StatusBadGateway},
		{narration.ErrTTSUnavailable, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		got, _ := api.StatusFor(tt.err)
		assert.Equal(t, tt.want, got, "StatusFor(%v)", tt.err)
	}
}

func TestSettingsAndVoices(t *testing.T) {
	env := newEnv(t)
	base := env.create(t)

	snap := env.state(t, http.MethodPut, base+"/settings", map[string]any{"accent": "UK", "darkMode": true, "speechRate": 9.0})
	assert.Equal(t, narration.AccentUK, snap.Settings.Accent)
	assert.True(t, snap.Settings.DarkMode)
	assert.Equal(t, 1.5, snap.Settings.SpeechRate)
	assert.Equal(t, 1.0, snap.Settings.Brightness)

	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodPut, base+"/settings", map[string]any{"accent": "AU"}))

	status, _ := env.do(t, http.MethodPut, base+"/voices", map[string]any{"voices": []map[string]string{{"name": "Google UK English Female", "lang": "en-GB"}}})
	assert.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, "invalid_body", env.errorCode(t, http.StatusBadRequest, http.MethodPut, base+"/voices", map[string]any{"voices": []map[string]string{{"lang": "en-GB"}}}))
}

func TestWorksheetDownload(t *testing.T) {
	env := newEnv(t)
	base := env.create(t)
	assert.Equal(t, "no_lesson", env.errorCode(t, http.StatusConflict, http.MethodGet, base+"/worksheet.xlsx", nil))

	env.openStarter(t, base)
	resp, err := http.Get(env.srv.URL + base + "/worksheet.xlsx")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "worksheet.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("Worksheet")
	require.NoError(t, err)
	assert.Len(t, rows, 13)
}

func TestTTS(t *testing.T) {
	unconfigured := newEnv(t)
	assert.Equal(t, "tts_unavailable", unconfigured.errorCode(t, http.StatusServiceUnavailable, http.MethodGet, "/api/tts?text=hi&lang=en-US", nil))

	ok := newEnv(t, func(d *api.Deps) { d.TTS = fakeTTS{audio: []byte("ID3")} })
	resp, err := http.Get(ok.srv.URL + "/api/tts?text=hi&lang=en-US")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "audio/mpeg", resp.Header.Get("Content-Type"))
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "ID3", string(body))

	upstream := newEnv(t, func(d *api.Deps) { d.TTS = fakeTTS{err: errors.New("tts api error (status 500)")} })
	assert.Equal(t, "upstream_failed", upstream.errorCode(t, http.StatusBadGateway, http.MethodGet, "/api/tts?text=hi&lang=en-US", nil))

	empty := newEnv(t, func(d *api.Deps) { d.TTS = fakeTTS{err: narration.ErrEmptyText} })
	assert.Equal(t, "empty_text", empty.errorCode(t, http.StatusBadRequest, http.MethodGet, "/api/tts?lang=en-US", nil))
}

func TestEventsWebSocket(t *testing.T) {
	env := newEnv(t)
	base := env.create(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(env.srv.URL, "http")+base+"/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var ev session.Event
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	require.Equal(t, session.EventState, ev.Type)
	assert.Equal(t, session.ScreenMenu, ev.State.Screen)

	id := strings.TrimPrefix(base, "/api/sessions/")
	require.Eventually(t, func() bool { return env.hub.Subscribers(id) == 1 }, time.Second, 10*time.Millisecond)

	env.state(t, http.MethodPost, base+"/subject", map[string]string{"subject": "zhuyin"})
	require.NoError(t, wsjson.Read(ctx, conn, &ev))
	assert.Equal(t, session.EventState, ev.Type)
	assert.Equal(t, content.SubjectZhuyin, ev.State.Subject)

	// Deleting the session ends the stream.
	status, _ := env.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, status)
	for err == nil {
		_, _, err = conn.Read(ctx)
	}
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}
