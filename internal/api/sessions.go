package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/little-star/internal/content"
	"github.com/p-n-ai/little-star/internal/narration"
	"github.com/p-n-ai/little-star/internal/results"
	"github.com/p-n-ai/little-star/internal/session"
	"github.com/p-n-ai/little-star/internal/stream"
)

const (
	defaultResultsLimit = 20
	maxResultsLimit     = 100
)

type subjectRequest struct {
	Subject string `json:"subject" validate:"required,oneof=english zhuyin math"`
}

type topicRequest struct {
	Topic string `json:"topic" validate:"max=200"`
}

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=study worksheet spelling quiz"`
}

type settingsRequest struct {
	Accent     *string  `json:"accent" validate:"omitempty,oneof=US UK"`
	DarkMode   *bool    `json:"darkMode"`
	Brightness *float64 `json:"brightness"`
	SpeechRate *float64 `json:"speechRate"`
}

type voicesRequest struct {
	Voices []narration.Voice `json:"voices" validate:"max=500,dive"`
}

type answerRequest struct {
	Word string `json:"word" validate:"required"`
}

type tapRequest struct {
	Index *int `json:"index" validate:"required,gte=0"`
}

// respondState answers a mutation with the session state after it.
func respondState(w http.ResponseWriter, r *http.Request, c *session.Controller, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *server) createSession(w http.ResponseWriter, r *http.Request) {
	c := s.Registry.Create()
	w.Header().Set("Location", "/api/sessions/"+c.ID())
	respondJSON(w, http.StatusCreated, c.Snapshot())
}

func (s *server) getSession(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	respondJSON(w, http.StatusOK, c.Snapshot())
}

func (s *server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Registry.Delete(chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) events(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	id := c.ID()
	err := s.Hub.ServeWS(w, r, id, c.Snapshot, stream.ServeOptions{
		OriginPatterns: s.AllowedOrigins,
		Keepalive:      func() { s.Registry.Touch(id) },
	})
	if err != nil {
		s.Logger.Debug("event stream closed", "session_id", id, "error", err)
	}
}

func (s *server) listResults(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	limit := defaultResultsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, r, fmt.Errorf("%w: limit must be a positive integer", errInvalidBody))
			return
		}
		limit = min(n, maxResultsLimit)
	}
	res, err := c.Results(r.Context(), limit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if res == nil {
		res = []results.GameResult{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"results": res})
}

func (s *server) selectSubject(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	var req subjectRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	respondState(w, r, c, c.SelectSubject(content.Subject(req.Subject)))
}

func (s *server) setTopic(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	var req topicRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	respondState(w, r, c, c.SetCustomTopic(req.Topic))
}

func (s *server) loadUnit(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), loadTimeout)
	defer cancel()
	respondState(w, r, c, c.LoadUnit(ctx, chi.URLParam(r, "unitID")))
}

func (s *server) goHome(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	respondState(w, r, c, c.GoHome())
}

func (s *server) switchMode(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	var req modeRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	mode, err := session.ParseMode(req.Mode)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondState(w, r, c, c.SwitchMode(mode))
}

func (s *server) updateSettings(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	var req settingsRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	patch := session.SettingsPatch{DarkMode: req.DarkMode, Brightness: req.Brightness, SpeechRate: req.SpeechRate}
	if req.Accent != nil {
		accent := narration.Accent(*req.Accent)
		patch.Accent = &accent
	}
	_, err := c.UpdateSettings(patch)
	respondState(w, r, c, err)
}

func (s *server) setVoices(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	var req voicesRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := c.SetVoices(req.Voices); err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) nextCard(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	respondState(w, r, c, c.NextCard())
}

func (s *server) prevCard(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	respondState(w, r, c, c.PrevCard())
}

func (s *server) flipCard(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	respondState(w, r, c, c.FlipCard())
}

func (s *server) speakCard(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	speak(w, r, c.SpeakCard(r.URL.Query().Get("side")))
}

// speak answers a narration request, which changes no state.
func speak(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathIndex(r *http.Request) (int, error) {
	i, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		return 0, fmt.Errorf("%w: index must be an integer", errInvalidBody)
	}
	return i, nil
}

func (s *server) toggleReveal(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	i, err := pathIndex(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondState(w, r, c, c.ToggleReveal(i))
}

func (s *server) speakWorksheetItem(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	i, err := pathIndex(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	speak(w, r, c.SpeakWorksheetItem(i))
}

func (s *server) exportWorksheet(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	// Render before writing headers so failures still get a JSON error.
	var buf bytes.Buffer
	if err := c.ExportWorksheet(&buf); err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="worksheet.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *server) answerQuiz(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	var req answerRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	respondState(w, r, c, c.AnswerQuiz(req.Word))
}

func (s *server) tapLetter(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	var req tapRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	respondState(w, r, c, c.TapLetter(*req.Index))
}

func (s *server) undoLetter(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	respondState(w, r, c, c.UndoLetter())
}

func (s *server) speakSpellingWord(w http.ResponseWriter, r *http.Request, c *session.Controller) {
	speak(w, r, c.SpeakSpellingWord())
}

func (s *server) synthesize(w http.ResponseWriter, r *http.Request) {
	if s.TTS == nil {
		respondError(w, r, narration.ErrTTSUnavailable)
		return
	}
	q := r.URL.Query()
	audio, err := s.TTS.Synthesize(r.Context(), q.Get("text"), q.Get("lang"))
	if err != nil {
		if status, _ := StatusFor(err); status == http.StatusInternalServerError {
			err = fmt.Errorf("%w: %w", errUpstream, err)
		}
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "public, max-age=604800")
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}
