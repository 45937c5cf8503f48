package core

import (
	"context"
	"time"

	"github.com/taskmesh/taskmesh/logging"
)

// RunContext carries the execution scope handed to every agent for one run.
// It aggregates:
//
//   - The ambient cancellation Context
//   - The run identifier and correlation id for event stamping
//   - The run-owned event bus and state store
//   - A logger adapter guaranteeing a non-nil logger
//
// The bus and store are explicit values owned by the run and passed by
// reference; their lifetime is scoped to a single run.
type RunContext struct {
	Context       context.Context
	RunID         string
	CorrelationID string
	Bus           EventBus
	State         StateStore

	*loggerAdapter
}

// NewRunContext constructs a RunContext bound to the given bus and store.
func NewRunContext(ctx context.Context, runID string, bus EventBus, store StateStore, logger logging.Logger) *RunContext {
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		CorrelationID: runID,
		Bus:           bus,
		State:         store,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

// Publish stamps the run's correlation id onto ev and publishes it.
func (rc *RunContext) Publish(ev Event) {
	if ev.CorrelationID == "" {
		ev.CorrelationID = rc.CorrelationID
	}
	rc.Bus.Publish(ev)
}

// WaitFor delegates to the state store using the run's ambient context.
func (rc *RunContext) WaitFor(key string, timeout time.Duration) (any, error) {
	return rc.State.WaitFor(rc.Context, key, timeout)
}
