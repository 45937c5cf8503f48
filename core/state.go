package core

import (
	"context"
	"time"
)

// StateStore is the shared keyed blackboard agents use to exchange data.
//
// Contract:
//   - Set is an atomic, fully serialized write per key; concurrent writers to
//     distinct keys proceed independently, writers to the same key are
//     mutually excluded with last-committed-wins semantics.
//   - Get/GetOr/Has are non-blocking.
//   - WaitFor suspends only the calling goroutine until the key exists or the
//     timeout elapses; on timeout it fails with a TimeoutError, never
//     silently returning a default.
//
// Entries live for the duration of one workflow run.
type StateStore interface {
	Set(key string, value any)
	Get(key string) (any, bool)
	GetOr(key string, def any) any
	Has(key string) bool
	Keys() []string
	Snapshot() map[string]any
	WaitFor(ctx context.Context, key string, timeout time.Duration) (any, error)
}
