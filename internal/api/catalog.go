package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/p-n-ai/little-star/internal/content"
)

type subjectView struct {
	ID       content.Subject `json:"id"`
	Symbolic bool            `json:"symbolic"`
	Units    int             `json:"units"`
}

func (s *server) listSubjects(w http.ResponseWriter, r *http.Request) {
	subjects := lo.Map(content.Subjects, func(subject content.Subject, _ int) subjectView {
		return subjectView{ID: subject, Symbolic: subject.Symbolic(), Units: len(s.Store.Units(subject))}
	})
	respondJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}

func (s *server) listUnits(w http.ResponseWriter, r *http.Request) {
	subject, err := content.ParseSubject(chi.URLParam(r, "subject"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"subject": subject, "units": s.Store.Units(subject)})
}
