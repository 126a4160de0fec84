package mealprep

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingAPIKey is returned when the Gemini provider is selected without GOOGLE_API_KEY.
	ErrMissingAPIKey = errors.New("GOOGLE_API_KEY not found")

	// ErrUnknownProvider is returned for an unsupported MEALPREP_PROVIDER value.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMaxToolIterations is returned when a single turn keeps requesting tools.
	ErrMaxToolIterations = errors.New("max tool iterations reached without a final answer")

	// ErrIncompleteToolTurn marks a model call that failed after the model had
	// already asked for tools in the same turn. Resending the user message
	// would leave an unanswered function call in the history, so it is not retried.
	ErrIncompleteToolTurn = errors.New("model call failed after tool calls were issued")

	// ErrInterrupted signals that the user interrupted the session.
	ErrInterrupted = errors.New("interrupted")
)

// ModelError is a failed call to a model service, carrying the HTTP status
// the service answered with (0 when unknown).
type ModelError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ModelError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("%s: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: %d %s: %v", e.Provider, e.StatusCode, http.StatusText(e.StatusCode), e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// Transient reports whether the service was rate limiting or overloaded.
func (e *ModelError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode == http.StatusServiceUnavailable
}

// NewModelError wraps err unless it is nil.
func NewModelError(provider string, status int, err error) error {
	if err == nil {
		return nil
	}
	return &ModelError{Provider: provider, StatusCode: status, Err: err}
}
