package session

import "errors"

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrClosed          = errors.New("session closed")

	// ErrInvalidTransition is returned for an operation the current screen does not allow.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrLoadInFlight is returned when a unit is already loading.
	ErrLoadInFlight = errors.New("unit load already in flight")
	ErrNoSubject    = errors.New("no subject selected")
	ErrBlankTopic   = errors.New("custom topic is blank")
	// ErrFetchFailed is returned when generated vocabulary could not be obtained.
	ErrFetchFailed = errors.New("vocabulary fetch failed")
	ErrNoLesson    = errors.New("no lesson loaded")

	ErrNotPlaying    = errors.New("game is not accepting input")
	ErrOutOfRange    = errors.New("index out of range")
	ErrUnknownOption = errors.New("answer is not one of the options")
)
