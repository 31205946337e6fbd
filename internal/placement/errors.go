package placement

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential is returned at startup when no API key is configured.
	ErrMissingCredential = errors.New("placement: api credential is not configured")
	// ErrNoSource is returned when neither a repository URL nor a local path is given.
	ErrNoSource = errors.New("placement: repo url or repo path required")
	// ErrInvalidInput marks bad scan options or paths.
	ErrInvalidInput = errors.New("placement: invalid input")
	// ErrService marks a failure of the inference service during adjudication.
	ErrService = errors.New("placement: adjudication service failure")
)

// AdjudicationError reports which file triggered a fatal service failure.
type AdjudicationError struct {
	Path string
	Err  error
}

func (e *AdjudicationError) Error() string {
	return fmt.Sprintf("placement: adjudicate %s: %v", e.Path, e.Err)
}

func (e *AdjudicationError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrService) match any adjudication failure.
func (e *AdjudicationError) Is(target error) bool { return target == ErrService }
