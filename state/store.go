// Package state implements the shared key-value blackboard agents use to
// exchange input and output. Producers and consumers are decoupled by key:
// an agent's result lives under its output key, and dependency ordering is
// enforced purely by checking for key presence.
package state

import (
	"context"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/core"
)

// Store is an in-memory core.StateStore. Writes to the same key are fully
// serialized under the store lock; blocked readers are woken by a per-key
// notification channel closed exactly on write, so WaitFor never polls.
// A Store's lifetime is one workflow run.
type Store struct {
	mu    sync.Mutex
	data  map[string]any
	watch map[string]chan struct{}
}

// New constructs an empty Store.
func New() *Store {
	return &Store{
		data:  make(map[string]any),
		watch: make(map[string]chan struct{}),
	}
}

// Set writes value under key, last-committed-wins, and wakes any goroutine
// blocked in WaitFor on that key.
func (s *Store) Set(key string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	if ch, ok := s.watch[key]; ok {
		close(ch)
		delete(s.watch, key)
	}
}

// Get returns the value and existence flag for key without blocking.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[key]
	return v, ok
}

// GetOr returns the value for key, or def when the key is absent.
func (s *Store) GetOr(key string, def any) any {
	if v, ok := s.Get(key); ok {
		return v
	}
	return def
}

// Has reports whether key exists without blocking.
func (s *Store) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	return ok
}

// Keys returns all present keys in unspecified order.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// Snapshot returns a shallow copy of the current key/value map.
func (s *Store) Snapshot() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.data))
	for k, v := range s.data {
		out[k] = v
	}
	return out
}

// WaitFor blocks the calling goroutine until key exists, the timeout elapses
// or ctx is cancelled. On timeout it returns a core.TimeoutError; it never
// silently returns a stale or default value.
func (s *Store) WaitFor(ctx context.Context, key string, timeout time.Duration) (any, error) {
	deadline := time.Now().Add(timeout)

	for {
		s.mu.Lock()
		if v, ok := s.data[key]; ok {
			s.mu.Unlock()
			return v, nil
		}
		ch, ok := s.watch[key]
		if !ok {
			ch = make(chan struct{})
			s.watch[key] = ch
		}
		s.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, &core.TimeoutError{What: "state key " + key, Timeout: timeout}
		}

		timer := time.NewTimer(remaining)
		select {
		case <-ch:
			timer.Stop()
			// Woken by a write; loop to re-read under the lock.
		case <-timer.C:
			return nil, &core.TimeoutError{What: "state key " + key, Timeout: timeout}
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		}
	}
}
