// Package bus implements the in-process event bus used for agent lifecycle
// coordination. A Bus is an explicit value owned by a single run: components
// receive it by reference, and callers may Clear the history between runs.
package bus

import (
	"sync"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// Logger receives handler panic reports and dispatch diagnostics.
	Logger logging.Logger
}

// Bus is a publish/subscribe channel with an append-only event history.
// It is safe for concurrent use from multiple goroutines without caller-side
// locking.
//
// Handlers of the same kind run in subscription order; no ordering is
// guaranteed between handlers of different kinds. A panicking handler is
// recovered and logged, never propagated to the publisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[core.EventKind][]core.EventHandler
	history     []core.Event
	logger      logging.Logger
}

// New constructs an empty Bus with optional overrides.
func New(optFns ...func(o *Options)) *Bus {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Bus{
		subscribers: make(map[core.EventKind][]core.EventHandler),
		logger:      opts.Logger,
	}
}

// Subscribe registers a handler invoked for every future event of the given
// kind. Events published before subscription are not replayed.
func (b *Bus) Subscribe(kind core.EventKind, handler core.EventHandler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[kind] = append(b.subscribers[kind], handler)
}

// Publish appends the event to the history and invokes all matching handlers
// in subscription order. Handlers run outside the bus lock so they may
// subscribe or publish recursively.
func (b *Bus) Publish(ev core.Event) {
	b.mu.Lock()
	b.history = append(b.history, ev)
	handlers := make([]core.EventHandler, len(b.subscribers[ev.Kind]))
	copy(handlers, b.subscribers[ev.Kind])
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatch(h, ev)
	}
}

// dispatch invokes one handler, isolating panics so a failing handler never
// prevents other handlers from running or Publish from returning.
func (b *Bus) dispatch(h core.EventHandler, ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked", "kind", string(ev.Kind), "source_id", ev.SourceID, "panic", r)
		}
	}()
	h(ev)
}

// History returns a defensive copy of every event published so far, in
// publication order.
func (b *Bus) History() []core.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	events := make([]core.Event, len(b.history))
	copy(events, b.history)
	return events
}

// HistoryByKind returns the published events of one kind, in publication order.
func (b *Bus) HistoryByKind(kind core.EventKind) []core.Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var events []core.Event
	for _, ev := range b.history {
		if ev.Kind == kind {
			events = append(events, ev)
		}
	}
	return events
}

// Clear discards the history. Subscriptions are kept; callers reusing a bus
// across runs should construct a fresh one instead.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}
