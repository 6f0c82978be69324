package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyRunning is returned by Start while a run is active.
	ErrAlreadyRunning = errors.New("session already running")
	// ErrNotRunning is returned by Feed outside a run.
	ErrNotRunning = errors.New("session not running")
	// ErrInvalidConfig is returned for out-of-range session settings.
	ErrInvalidConfig = errors.New("invalid session config")
)

// ClassificationError is the fatal error that stopped a run. It wraps the
// underlying cause, so errors.Is(err, feature.ErrShape) reports structural
// failures.
type ClassificationError struct {
	RunID string
	Err   error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classification failed in run %s: %v", e.RunID, e.Err)
}

func (e *ClassificationError) Unwrap() error {
	return e.Err
}
