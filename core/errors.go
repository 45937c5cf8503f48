package core

import (
	"errors"
	"fmt"
	"time"
)

// TimeoutError reports that a blocking wait exceeded its deadline. Both state
// store reads (wait for key) and runtime completion waits surface it.
type TimeoutError struct {
	What    string
	Timeout time.Duration
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout after %s waiting for %s", e.Timeout, e.What)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}

// ValidationError reports malformed input or classification shape.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Reason)
	}
	return fmt.Sprintf("validation failed for %q: %s", e.Field, e.Reason)
}

// PlanningError reports that a builder could not produce or parse a valid
// plan. Callers recover it locally by falling back to the default plan.
type PlanningError struct {
	Reason string
	Err    error
}

// Error implements the error interface.
func (e *PlanningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("planning failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("planning failed: %s", e.Reason)
}

// Unwrap exposes the wrapped cause.
func (e *PlanningError) Unwrap() error { return e.Err }

// AgentFailure reports that a step's execution failed. It aborts remaining
// unexecuted steps; partial results already collected stay available.
type AgentFailure struct {
	AgentID string
	Err     error
}

// Error implements the error interface.
func (e *AgentFailure) Error() string {
	return fmt.Sprintf("agent %s failed: %v", e.AgentID, e.Err)
}

// Unwrap exposes the wrapped cause.
func (e *AgentFailure) Unwrap() error { return e.Err }

// ConfigError reports a missing or malformed registry/policy file. Loaders
// degrade to compiled-in defaults and report it for logging; it never aborts
// a run.
type ConfigError struct {
	Path string
	Err  error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %v", e.Path, e.Err)
}

// Unwrap exposes the wrapped cause.
func (e *ConfigError) Unwrap() error { return e.Err }
