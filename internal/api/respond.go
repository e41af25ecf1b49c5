package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/p-n-ai/little-star/internal/content"
	"github.com/p-n-ai/little-star/internal/narration"
	"github.com/p-n-ai/little-star/internal/session"
)

var (
	// errInvalidBody marks a request that could not be decoded or validated.
	errInvalidBody = errors.New("invalid request body")
	// errUpstream marks a failure of a remote service.
	errUpstream = errors.New("upstream service failed")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the failure.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorKind struct {
	target error
	status int
	code   string
}

// errorKinds is matched in order; the first kind the error wraps wins.
var errorKinds = []errorKind{
	{errInvalidBody, http.StatusBadRequest, "invalid_body"},
	{session.ErrBlankTopic, http.StatusBadRequest, "blank_topic"},
	{session.ErrOutOfRange, http.StatusBadRequest, "out_of_range"},
	{session.ErrUnknownOption, http.StatusBadRequest, "unknown_option"},
	{content.ErrUnknownSubject, http.StatusBadRequest, "unknown_subject"},
	{narration.ErrEmptyText, http.StatusBadRequest, "empty_text"},
	{narration.ErrInvalidLang, http.StatusBadRequest, "invalid_lang"},
	{session.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{content.ErrUnknownUnit, http.StatusNotFound, "unknown_unit"},
	{session.ErrClosed, http.StatusGone, "session_closed"},
	{session.ErrLoadInFlight, http.StatusConflict, "load_in_flight"},
	{session.ErrNoSubject, http.StatusConflict, "no_subject"},
	{session.ErrNoLesson, http.StatusConflict, "no_lesson"},
	{session.ErrNotPlaying, http.StatusConflict, "not_playing"},
	{session.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
	{content.ErrBudgetExhausted, http.StatusTooManyRequests, "budget_exhausted"},
	{session.ErrFetchFailed, http.StatusBadGateway, "fetch_failed"},
	{errUpstream, http.StatusBadGateway, "upstream_failed"},
	{narration.ErrTTSUnavailable, http.StatusServiceUnavailable, "tts_unavailable"},
}

// StatusFor maps an error to its HTTP status and error code.
func StatusFor(err error) (int, string) {
	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.status, k.code
		}
	}
	return http.StatusInternalServerError, "internal"
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		slog.Error("encoding response", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":{"code":"internal","message":"failed to encode response"}}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(body)
}

// respondError writes err as an ErrorBody. Server errors are logged and their details hidden.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		msg = "internal server error"
	}
	respondJSON(w, status, ErrorBody{Error: ErrorDetail{Code: code, Message: msg}})
}

// decodeBody decodes and validates a JSON request body into dst.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fmt.Errorf("%w: %s", errInvalidBody, describe(verrs))
		}
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return nil
}

func describe(errs validator.ValidationErrors) string {
	parts := make([]string, 0, len(errs))
	for _, fe := range errs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}
