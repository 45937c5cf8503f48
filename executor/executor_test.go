package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmesh/taskmesh/agent"
	"github.com/taskmesh/taskmesh/bus"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/plan"
	"github.com/taskmesh/taskmesh/state"
)

func newTestRunContext(t *testing.T) *core.RunContext {
	t.Helper()
	return core.NewRunContext(context.Background(), "run-exec", bus.New(), state.New(), nil)
}

// recorder tracks execution order across agents.
type recorder struct {
	mu    sync.Mutex
	order []string
}

func (r *recorder) mark(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = append(r.order, id)
}

func (r *recorder) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func registerRecording(reg *agent.Registry, rec *recorder, id string, fail bool) {
	reg.Register(id, func() core.Agent {
		return agent.NewFuncAgent(id, func(rc *core.RunContext) (map[string]any, error) {
			rec.mark(id)
			if fail {
				return nil, errors.New(id + " exploded")
			}
			return map[string]any{"by": id}, nil
		})
	})
}

func serialPlan(agents ...string) *plan.ExecutionPlan {
	steps := make([]plan.WorkflowStep, 0, len(agents))
	prev := "planner_agent"
	for _, id := range agents {
		steps = append(steps, plan.WorkflowStep{
			StepID:       "step_" + id,
			AgentID:      id,
			Dependencies: []string{prev},
		})
		prev = "step_" + id
	}
	return &plan.ExecutionPlan{PlanID: "plan_test_serial", Strategy: plan.StrategySerial, Steps: steps}
}

func plannerSeed() map[string]any {
	return map[string]any{core.OutputKey("planner_agent"): map[string]any{}}
}

func TestExecutor_SerialOrder(t *testing.T) {
	reg := agent.NewRegistry()
	rec := &recorder{}
	registerRecording(reg, rec, "first", false)
	registerRecording(reg, rec, "second", false)
	registerRecording(reg, rec, "third", false)

	e := New(reg)
	rc := newTestRunContext(t)

	result, err := e.Execute(rc, serialPlan("first", "second", "third"), plannerSeed())
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, rec.seen())
	assert.Len(t, result.Results, 3)
	assert.Equal(t, map[string]any{"by": "second"}, result.Results["second"])

	complete := rc.Bus.(*bus.Bus).HistoryByKind(core.EventWorkflowComplete)
	require.Len(t, complete, 1)
	assert.Equal(t, "plan_test_serial", complete[0].Payload["plan_id"])
}

func TestExecutor_FailureAbortsRemainingSteps(t *testing.T) {
	reg := agent.NewRegistry()
	rec := &recorder{}
	registerRecording(reg, rec, "first", false)
	registerRecording(reg, rec, "second", true)
	registerRecording(reg, rec, "third", false)

	e := New(reg)
	rc := newTestRunContext(t)

	result, err := e.Execute(rc, serialPlan("first", "second", "third"), plannerSeed())
	require.Error(t, err)

	var af *core.AgentFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, "second", af.AgentID)

	// The partial result holds exactly the completed step, and the third
	// agent never ran.
	require.NotNil(t, result)
	assert.Len(t, result.Results, 1)
	assert.Contains(t, result.Results, "first")
	assert.Equal(t, []string{"first", "second"}, rec.seen())
	assert.Empty(t, rc.Bus.(*bus.Bus).HistoryByKind(core.EventWorkflowComplete))
}

func TestExecutor_ParallelGroupRunsConcurrently(t *testing.T) {
	reg := agent.NewRegistry()

	release := make(chan struct{})
	var arrived sync.WaitGroup
	arrived.Add(2)
	for _, id := range []string{"left", "right"} {
		id := id
		reg.Register(id, func() core.Agent {
			return agent.NewFuncAgent(id, func(rc *core.RunContext) (map[string]any, error) {
				arrived.Done()
				<-release
				return map[string]any{"by": id}, nil
			})
		})
	}
	rec := &recorder{}
	registerRecording(reg, rec, "tail", false)

	p := &plan.ExecutionPlan{
		PlanID:   "plan_test_parallel",
		Strategy: plan.StrategyParallel,
		Steps: []plan.WorkflowStep{
			{StepID: "step_left", AgentID: "left", Dependencies: []string{"planner_agent"}, ParallelGroupID: "g"},
			{StepID: "step_right", AgentID: "right", Dependencies: []string{"planner_agent"}, ParallelGroupID: "g"},
			{StepID: "step_tail", AgentID: "tail", Dependencies: []string{"step_left", "step_right"}},
		},
	}

	e := New(reg)
	rc := newTestRunContext(t)

	// Both group members must be in flight at once before either returns;
	// a serialized dispatch would deadlock here and trip the test timeout.
	go func() {
		arrived.Wait()
		close(release)
	}()

	result, err := e.Execute(rc, p, plannerSeed())
	require.NoError(t, err)
	assert.Len(t, result.Results, 3)
	assert.Equal(t, []string{"tail"}, rec.seen(), "tail runs only after the whole group")
}

func TestExecutor_ParallelSiblingFailureReported(t *testing.T) {
	reg := agent.NewRegistry()
	rec := &recorder{}
	registerRecording(reg, rec, "ok_agent", false)
	registerRecording(reg, rec, "bad_agent", true)
	registerRecording(reg, rec, "tail", false)

	p := &plan.ExecutionPlan{
		PlanID:   "plan_test_parallel_fail",
		Strategy: plan.StrategyParallel,
		Steps: []plan.WorkflowStep{
			{StepID: "step_ok", AgentID: "ok_agent", ParallelGroupID: "g"},
			{StepID: "step_bad", AgentID: "bad_agent", ParallelGroupID: "g"},
			{StepID: "step_tail", AgentID: "tail", Dependencies: []string{"step_ok", "step_bad"}},
		},
	}

	e := New(reg)
	rc := newTestRunContext(t)

	result, err := e.Execute(rc, p, nil)
	require.Error(t, err)
	var af *core.AgentFailure
	require.ErrorAs(t, err, &af)
	assert.Equal(t, "bad_agent", af.AgentID)

	// The healthy sibling's output is preserved; the tail never ran.
	assert.Contains(t, result.Results, "ok_agent")
	assert.NotContains(t, rec.seen(), "tail")
}

func TestExecutor_MissingSeedTimesOut(t *testing.T) {
	reg := agent.NewRegistry()
	rec := &recorder{}
	registerRecording(reg, rec, "gated", false)

	e := New(reg, func(o *Options) {
		o.DependencyTimeout = 30 * time.Millisecond
		o.StepTimeout = time.Second
	})
	rc := newTestRunContext(t)

	_, err := e.Execute(rc, serialPlan("gated"), nil)
	require.Error(t, err)
	assert.True(t, core.IsTimeout(err))
	assert.Empty(t, rec.seen())
}

func TestExecutor_UnknownAgentRejectedBeforeAnyRun(t *testing.T) {
	reg := agent.NewRegistry()
	rec := &recorder{}
	registerRecording(reg, rec, "known", false)

	p := serialPlan("known", "unknown")
	e := New(reg)
	rc := newTestRunContext(t)

	_, err := e.Execute(rc, p, plannerSeed())
	require.Error(t, err)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Empty(t, rec.seen(), "validation must fail before the first step runs")
}

func TestExecutor_StepInputsVisibleToAgent(t *testing.T) {
	reg := agent.NewRegistry()
	var got any
	reg.Register("consumer", func() core.Agent {
		return agent.NewFuncAgent("consumer", func(rc *core.RunContext) (map[string]any, error) {
			got, _ = rc.State.Get("consumer_inputs")
			return map[string]any{}, nil
		})
	})

	p := &plan.ExecutionPlan{
		PlanID:   "plan_inputs",
		Strategy: plan.StrategySerial,
		Steps: []plan.WorkflowStep{
			{StepID: "step_consumer", AgentID: "consumer", Inputs: map[string]any{"query": "refund policy"}},
		},
	}

	e := New(reg)
	rc := newTestRunContext(t)
	_, err := e.Execute(rc, p, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"query": "refund policy"}, got)
}
