package content

import "errors"

var (
	ErrUnknownSubject = errors.New("unknown subject")
	ErrUnknownUnit    = errors.New("unknown unit")

	// ErrMissingAPIKey is returned before any network call when no generation credential is set.
	ErrMissingAPIKey = errors.New("generation API key is missing")
	// ErrBudgetExhausted is returned when the owner has spent its generation token budget.
	ErrBudgetExhausted = errors.New("generation budget exhausted")
)
