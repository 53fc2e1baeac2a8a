package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrComputationTimeout is returned when model fitting exceeds the fit timeout. No partial
	// result accompanies it.
	ErrComputationTimeout = errors.New("forecast computation timed out")
	// ErrInvalidRequest marks caller mistakes such as an out of range horizon.
	ErrInvalidRequest = errors.New("invalid request")
)

// PersistenceError reports a failed snapshot append. The computed result is still returned
// alongside it; nothing is retried.
type PersistenceError struct {
	SnapshotID string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persisting snapshot %s: %v", e.SnapshotID, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// ConfigurationError is fatal at startup.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
