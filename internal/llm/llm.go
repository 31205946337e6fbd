package llm

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrEmptyReply is returned when a provider answers without any text.
	ErrEmptyReply = errors.New("llm: empty reply from model")
	// ErrNoClient is returned when a caller has no client configured.
	ErrNoClient = errors.New("llm: no client configured")
)

// Request is a single completion call.
type Request struct {
	Prompt      string
	Model       string
	Temperature float32
	// MaxTokens bounds the reply length; <= 0 leaves the provider default.
	MaxTokens int
	// JSON asks the provider for a JSON-object-shaped reply.
	JSON bool
}

// Client is the one capability the pipeline needs from an inference service:
// turn a prompt into reply text.
type Client interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
	Close() error
}

// StatusError is a non-2xx provider response.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether retrying may succeed (rate limits and server errors).
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// PermanentError indicates an error that will not resolve with retries.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	var pErr *PermanentError
	if errors.As(err, &pErr) {
		return true
	}
	var sErr *StatusError
	if errors.As(err, &sErr) {
		return !sErr.Temporary()
	}
	return false
}
