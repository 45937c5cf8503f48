package agent

import (
	"context"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/core"
)

// Runtime wraps one core.Agent for a single workflow run. It owns the agent's
// lifecycle status, publishes the started/completed/failed events around
// Execute, writes the agent's result under its output key and signals
// completion to any goroutine blocked in AwaitCompletion.
//
// A Runtime executes at most once: after it reaches a terminal status,
// further Run calls are no-ops. All exported methods are goroutine-safe.
type Runtime struct {
	agent core.Agent
	deps  []string

	mu     sync.Mutex
	status core.Status
	result map[string]any
	err    error
	done   chan struct{}
}

// NewRuntime wraps agent in a fresh Runtime in the idle state. The agent's
// own Dependencies() are the initial dependency set; SetDependencies
// overrides them when a plan supplies step-level edges.
func NewRuntime(agent core.Agent) *Runtime {
	return &Runtime{
		agent:  agent,
		deps:   append([]string(nil), agent.Dependencies()...),
		status: core.StatusIdle,
		done:   make(chan struct{}),
	}
}

// ID returns the wrapped agent's identifier.
func (r *Runtime) ID() string { return r.agent.ID() }

// Status returns the current lifecycle status.
func (r *Runtime) Status() core.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Dependencies returns the agent identifiers this runtime waits on.
func (r *Runtime) Dependencies() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.deps...)
}

// SetDependencies replaces the dependency set. Calling it after execution has
// started has no effect on the run in flight.
func (r *Runtime) SetDependencies(deps []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deps = append([]string(nil), deps...)
}

// Result returns the agent's output map and error after a terminal status.
// Before completion both values are zero.
func (r *Runtime) Result() (map[string]any, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.result, r.err
}

// tryStart atomically claims the right to execute. Only the transition from
// idle or waiting into running succeeds; every other caller observes false
// and must not execute.
func (r *Runtime) tryStart() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != core.StatusIdle && r.status != core.StatusWaiting {
		return false
	}
	r.status = core.StatusRunning
	return true
}

// depsSatisfied reports whether every dependency's output key is present in
// the run's state store.
func (r *Runtime) depsSatisfied(rc *core.RunContext) bool {
	for _, dep := range r.Dependencies() {
		if !rc.State.Has(core.OutputKey(dep)) {
			return false
		}
	}
	return true
}

// Run executes the wrapped agent immediately, without checking dependencies.
// It publishes the started event, invokes Execute, writes the result under
// the agent's output key and publishes completed plus data_available, or on
// error publishes failed and records a core.AgentFailure. The second and
// later calls on the same Runtime return the stored outcome.
func (r *Runtime) Run(rc *core.RunContext) (map[string]any, error) {
	if !r.tryStart() {
		<-r.done
		return r.Result()
	}

	id := r.ID()
	rc.Publish(core.NewEvent(core.EventStarted, id, map[string]any{
		"agent_id": id,
	}))
	rc.LogDebug("agent started", "agent_id", id, "run_id", rc.RunID)

	result, err := r.execute(rc)
	if err != nil {
		failure := &core.AgentFailure{AgentID: id, Err: err}
		r.finish(core.StatusFailed, nil, failure)
		rc.Publish(core.NewEvent(core.EventFailed, id, map[string]any{
			"agent_id": id,
			"error":    err.Error(),
		}))
		rc.LogError("agent failed", "agent_id", id, "error", err)
		return nil, failure
	}

	rc.State.Set(core.OutputKey(id), result)
	r.finish(core.StatusCompleted, result, nil)
	rc.Publish(core.NewEvent(core.EventCompleted, id, map[string]any{
		"agent_id": id,
		"result":   result,
	}))
	rc.Publish(core.NewEvent(core.EventDataAvailable, id, map[string]any{
		"key": core.OutputKey(id),
	}))
	rc.LogDebug("agent completed", "agent_id", id, "run_id", rc.RunID)
	return result, nil
}

// execute invokes the agent, translating a panic inside Execute into an
// ordinary error so one misbehaving agent cannot take down the run.
func (r *Runtime) execute(rc *core.RunContext) (result map[string]any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			result = nil
			err = &core.ValidationError{Field: "agent " + r.ID(), Reason: "panicked during execution"}
			rc.LogError("agent panicked", "agent_id", r.ID(), "panic", rec)
		}
	}()
	return r.agent.Execute(rc)
}

// RunWhenReady blocks until every dependency's output key exists, then runs
// the agent. While blocked the runtime reports the waiting status. A
// dependency that never materializes within depTimeout fails the runtime
// with a core.AgentFailure wrapping the timeout.
func (r *Runtime) RunWhenReady(rc *core.RunContext, depTimeout time.Duration) (map[string]any, error) {
	if err := r.AwaitDependencies(rc, depTimeout); err != nil {
		failure := &core.AgentFailure{AgentID: r.ID(), Err: err}
		r.finish(core.StatusFailed, nil, failure)
		rc.Publish(core.NewEvent(core.EventFailed, r.ID(), map[string]any{
			"agent_id": r.ID(),
			"error":    err.Error(),
		}))
		return nil, failure
	}
	return r.Run(rc)
}

// AwaitDependencies blocks until every dependency output key is present or
// depTimeout elapses. It leaves the runtime in waiting while blocked and
// back in idle once satisfied, ready for Run.
func (r *Runtime) AwaitDependencies(rc *core.RunContext, depTimeout time.Duration) error {
	if r.depsSatisfied(rc) {
		return nil
	}

	r.mu.Lock()
	if r.status == core.StatusIdle {
		r.status = core.StatusWaiting
	}
	r.mu.Unlock()
	rc.LogDebug("agent waiting on dependencies", "agent_id", r.ID(), "deps", r.Dependencies())

	deadline := time.Now().Add(depTimeout)
	for _, dep := range r.Dependencies() {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			remaining = time.Nanosecond
		}
		if _, err := rc.State.WaitFor(rc.Context, core.OutputKey(dep), remaining); err != nil {
			return err
		}
	}

	r.mu.Lock()
	if r.status == core.StatusWaiting {
		r.status = core.StatusIdle
	}
	r.mu.Unlock()
	return nil
}

// AwaitCompletion blocks until the runtime reaches a terminal status, ctx is
// cancelled or timeout elapses, and returns the stored outcome. Waiting does
// not consume CPU; completion is signalled through a channel closed exactly
// once at the terminal transition.
func (r *Runtime) AwaitCompletion(ctx context.Context, timeout time.Duration) (map[string]any, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-r.done:
		return r.Result()
	case <-timer.C:
		return nil, &core.TimeoutError{What: "agent " + r.ID(), Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish records the terminal status and outcome and closes the done channel.
func (r *Runtime) finish(status core.Status, result map[string]any, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status.Terminal() {
		return
	}
	r.status = status
	r.result = result
	r.err = err
	close(r.done)
}

// ResumeOnData subscribes the runtime to data_available events: when one of
// its missing dependencies appears and the rest are already present, the
// runtime runs on the publisher's goroutine. This is the event-driven
// alternative to RunWhenReady for callers that dispatch agents eagerly.
func (r *Runtime) ResumeOnData(rc *core.RunContext) {
	rc.Bus.Subscribe(core.EventDataAvailable, func(core.Event) {
		if r.Status().Terminal() || r.Status() == core.StatusRunning {
			return
		}
		if r.depsSatisfied(rc) {
			// The outcome is recorded on the runtime for AwaitCompletion.
			_, _ = r.Run(rc)
		}
	})
}
