package testutil

import (
	"time"

	"github.com/taskmesh/taskmesh/core"
)

// StubAgent is a scripted core.Agent for tests: fixed result or error, an
// optional execution delay and a record of how often it ran.
type StubAgent struct {
	AgentID string
	Deps    []string
	Result  map[string]any
	Err     error
	Delay   time.Duration

	calls int
}

// NewStubAgent constructs a StubAgent returning an empty result.
func NewStubAgent(id string, deps ...string) *StubAgent {
	return &StubAgent{
		AgentID: id,
		Deps:    deps,
		Result:  map[string]any{},
	}
}

// ID returns the agent identifier.
func (s *StubAgent) ID() string { return s.AgentID }

// Description returns a fixed stub description.
func (s *StubAgent) Description() string { return "stub agent " + s.AgentID }

// Dependencies returns the scripted dependency list.
func (s *StubAgent) Dependencies() []string { return s.Deps }

// Execute sleeps for the configured delay, then returns the scripted
// outcome.
func (s *StubAgent) Execute(rc *core.RunContext) (map[string]any, error) {
	s.calls++
	if s.Delay > 0 {
		select {
		case <-time.After(s.Delay):
		case <-rc.Done():
			return nil, rc.Err()
		}
	}
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Result, nil
}

// Calls reports how often Execute ran.
func (s *StubAgent) Calls() int { return s.calls }
