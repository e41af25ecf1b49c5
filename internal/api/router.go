// Package api exposes learner sessions over HTTP and WebSocket.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/p-n-ai/little-star/internal/content"
	"github.com/p-n-ai/little-star/internal/session"
	"github.com/p-n-ai/little-star/internal/stream"
)

// HealthChecker is a dependency probed by /readyz.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Synthesizer renders narration audio.
type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) ([]byte, error)
}

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Registry *session.Registry
	Store    *content.Store
	Hub      *stream.Hub
	TTS      Synthesizer
	// Checks are probed by /readyz, keyed by dependency name.
	Checks map[string]HealthChecker
	// AllowedOrigins lists browser origins allowed for CORS and WebSocket connections.
	AllowedOrigins []string
	Logger         *slog.Logger
}

// loadTimeout bounds a vocabulary request. It outlives the HTTP request so other devices
// still receive the lesson if the caller disconnects.
const loadTimeout = 45 * time.Second

type server struct {
	Deps
}

// NewRouter builds the HTTP handler.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	s := &server{Deps: deps}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	if len(deps.AllowedOrigins) > 0 {
		r.Use(cors.New(cors.Options{
			AllowedOrigins: deps.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
			AllowedHeaders: []string{"Content-Type"},
		}).Handler)
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)

	r.Route("/api", func(r chi.Router) {
		r.Get("/subjects", s.listSubjects)
		r.Get("/subjects/{subject}/units", s.listUnits)
		r.Get("/tts", s.synthesize)

		r.Post("/sessions", s.createSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.withSession(s.getSession))
			r.Delete("/", s.deleteSession)
			r.Get("/events", s.withSession(s.events))
			r.Get("/results", s.withSession(s.listResults))

			r.Post("/subject", s.withSession(s.selectSubject))
			r.Post("/topic", s.withSession(s.setTopic))
			r.Post("/units/{unitID}", s.withSession(s.loadUnit))
			r.Post("/home", s.withSession(s.goHome))
			r.Post("/mode", s.withSession(s.switchMode))
			r.Put("/settings", s.withSession(s.updateSettings))
			r.Put("/voices", s.withSession(s.setVoices))

			r.Post("/cards/next", s.withSession(s.nextCard))
			r.Post("/cards/prev", s.withSession(s.prevCard))
			r.Post("/cards/flip", s.withSession(s.flipCard))
			r.Post("/cards/speak", s.withSession(s.speakCard))

			r.Post("/worksheet/{index}/reveal", s.withSession(s.toggleReveal))
			r.Post("/worksheet/{index}/speak", s.withSession(s.speakWorksheetItem))
			r.Get("/worksheet.xlsx", s.withSession(s.exportWorksheet))

			r.Post("/quiz/answer", s.withSession(s.answerQuiz))

			r.Post("/spelling/tap", s.withSession(s.tapLetter))
			r.Post("/spelling/undo", s.withSession(s.undoLetter))
			r.Post("/spelling/speak", s.withSession(s.speakSpellingWord))
		})
	})

	return r
}

type sessionHandler func(w http.ResponseWriter, r *http.Request, c *session.Controller)

// withSession resolves the {id} path parameter to a live controller.
func (s *server) withSession(h sessionHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := s.Registry.Get(chi.URLParam(r, "id"))
		if err != nil {
			respondError(w, r, err)
			return
		}
		h(w, r, c)
	}
}

func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range s.Checks {
		if err := check.HealthCheck(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		s.Logger.Warn("readiness check failed", "failed", failed)
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "failed": failed})
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
