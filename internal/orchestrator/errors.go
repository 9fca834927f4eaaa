package orchestrator

import (
	"errors"
	"fmt"
)

// ErrUnknownSequence is returned when a run or confirmation names a sequence
// the catalog does not contain.
var ErrUnknownSequence = errors.New("orchestrator: no catalog item with that sequence")

// ErrNotTargeted is returned when a confirmation names a platform the item
// does not list.
var ErrNotTargeted = errors.New("orchestrator: item does not target that platform")

// ConfigError marks a fatal configuration problem: missing catalog, corrupt
// ledger, orphan records, unknown platform or invalid cadence. Callers abort
// and exit non-zero.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	if e.Err == nil {
		return "configuration error"
	}
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError wraps err, leaving nil and existing ConfigErrors unchanged.
func NewConfigError(err error) error {
	if err == nil {
		return nil
	}
	var ce *ConfigError
	if errors.As(err, &ce) {
		return err
	}
	return &ConfigError{Err: err}
}

// IsConfigError reports whether err carries a ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
