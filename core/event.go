package core

import (
	"time"

	"github.com/google/uuid"
)

// EventKind categorizes lifecycle notifications published on the event bus.
type EventKind string

const (
	// EventStarted signals that an agent transitioned to running.
	EventStarted EventKind = "agent_started"
	// EventCompleted signals that an agent finished successfully.
	EventCompleted EventKind = "agent_completed"
	// EventFailed signals that an agent's execution returned an error.
	EventFailed EventKind = "agent_failed"
	// EventDataAvailable signals that an agent's output key was written,
	// prompting waiting agents to re-check their dependencies.
	EventDataAvailable EventKind = "data_available"
	// EventWorkflowComplete signals that a full plan execution finished.
	EventWorkflowComplete EventKind = "workflow_complete"
)

// Event is the unit of communication on the bus. After publication it must be
// treated as immutable; the bus retains every published event in an
// append-only history for audit and metrics.
type Event struct {
	ID            string         `json:"id"`
	Kind          EventKind      `json:"kind"`
	SourceID      string         `json:"source_id"`
	Payload       map[string]any `json:"payload,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id,omitempty"`
}

// NewEvent creates an event authored by sourceID with a fresh id and UTC timestamp.
func NewEvent(kind EventKind, sourceID string, payload map[string]any) Event {
	return Event{
		ID:        NewID(),
		Kind:      kind,
		SourceID:  sourceID,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// NewID generates a new unique identifier for events, runs and plans.
func NewID() string { return uuid.NewString() }

// EventHandler consumes a published event. Handlers of the same kind are
// invoked in subscription order; a panicking handler is isolated by the bus
// and never prevents later handlers or the publisher from proceeding.
type EventHandler func(Event)

// EventBus is the in-process publish/subscribe channel for lifecycle
// notifications. Implementations must be safe for concurrent use and scope
// their history to a single run (callers may Clear between runs).
type EventBus interface {
	Subscribe(kind EventKind, handler EventHandler)
	Publish(ev Event)
	History() []Event
	Clear()
}
