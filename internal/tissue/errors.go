package tissue

import (
	"errors"
	"fmt"
)

var (
	// ErrInvariantViolation marks a logic defect detected inside the engine.
	ErrInvariantViolation = errors.New("tissue invariant violated")

	// ErrPlacementExhausted is returned when initial placement runs out of attempts.
	ErrPlacementExhausted = errors.New("initial placement attempts exhausted")
)

// InvariantError reports a broken engine invariant. It aborts the step that raised it.
type InvariantError struct {
	Step   int
	Detail string
}

func (e *InvariantError) Error() string {
	if e.Step >= 0 {
		return fmt.Sprintf("tissue invariant violated at step %d: %s", e.Step, e.Detail)
	}
	return "tissue invariant violated: " + e.Detail
}

func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

func invariantf(step int, format string, v ...any) error {
	return &InvariantError{Step: step, Detail: fmt.Sprintf(format, v...)}
}

// ConfigError reports a configuration that cannot produce a valid tissue.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return "tissue config: " + e.Err.Error()
	}
	return fmt.Sprintf("tissue config %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
