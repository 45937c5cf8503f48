// Package executor interprets an execution plan: it instantiates one agent
// runtime per step, gates each step on its dependencies through the state
// store and dispatches parallel groups concurrently. Failures abort the
// remaining steps while preserving the results already produced.
package executor

import (
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/agent"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/plan"
)

// Options holds configuration overrides passed to New().
type Options struct {
	// DependencyTimeout bounds how long one step waits for an upstream
	// output key.
	DependencyTimeout time.Duration
	// StepTimeout bounds one step's total execution, dependency wait
	// included.
	StepTimeout time.Duration
	Logger      logging.Logger
}

// Executor runs plans against a registry of agent factories. It is stateless
// across runs; all per-run state lives in the RunContext.
type Executor struct {
	registry   *agent.Registry
	depTimeout time.Duration
	timeout    time.Duration
	logger     logging.Logger
}

// New constructs an Executor with optional overrides.
func New(registry *agent.Registry, optFns ...func(o *Options)) *Executor {
	opts := Options{
		DependencyTimeout: 30 * time.Second,
		StepTimeout:       60 * time.Second,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Executor{
		registry:   registry,
		depTimeout: opts.DependencyTimeout,
		timeout:    opts.StepTimeout,
		logger:     opts.Logger,
	}
}

// Result aggregates the outputs of a plan run, keyed by agent id. A failed
// run still carries the outputs of every step that completed before the
// failure.
type Result struct {
	PlanID  string
	Results map[string]map[string]any
}

// Execute runs the plan inside the given run context. The seed map is
// committed to the state store before the first step so externally produced
// predecessors (such as planning output) are visible to dependency gating.
//
// Steps run in plan order. Consecutive steps sharing a parallel group id are
// dispatched concurrently and joined before the next step starts. On the
// first failure the remaining steps are skipped and the partial Result is
// returned together with the failure.
func (e *Executor) Execute(rc *core.RunContext, p *plan.ExecutionPlan, seed map[string]any) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := e.registry.Validate(p.AgentIDs()); err != nil {
		return nil, err
	}

	for key, value := range seed {
		rc.State.Set(key, value)
	}

	runtimes, err := e.buildRuntimes(p)
	if err != nil {
		return nil, err
	}

	result := &Result{
		PlanID:  p.PlanID,
		Results: make(map[string]map[string]any, len(p.Steps)),
	}
	e.logger.Info("plan execution started", "plan_id", p.PlanID, "run_id", rc.RunID, "steps", len(p.Steps))

	for _, batch := range batchSteps(p.Steps) {
		if len(batch) == 1 {
			err = e.runStep(rc, runtimes, batch[0], result)
		} else {
			err = e.runGroup(rc, runtimes, batch, result)
		}
		if err != nil {
			e.logger.Error("plan execution aborted", "plan_id", p.PlanID, "run_id", rc.RunID, "error", err)
			return result, err
		}
	}

	rc.Publish(core.NewEvent(core.EventWorkflowComplete, "executor", map[string]any{
		"plan_id": p.PlanID,
		"steps":   len(p.Steps),
	}))
	e.logger.Info("plan execution completed", "plan_id", p.PlanID, "run_id", rc.RunID)
	return result, nil
}

// buildRuntimes instantiates one runtime per step and rewrites the step's
// dependency edges onto agent ids: an in-plan step id becomes that step's
// agent, anything else is an external predecessor gated on as-is.
func (e *Executor) buildRuntimes(p *plan.ExecutionPlan) (map[string]*agent.Runtime, error) {
	agentByStep := make(map[string]string, len(p.Steps))
	for _, step := range p.Steps {
		agentByStep[step.StepID] = step.AgentID
	}

	runtimes := make(map[string]*agent.Runtime, len(p.Steps))
	for _, step := range p.Steps {
		a, ok := e.registry.New(step.AgentID)
		if !ok {
			return nil, &core.ValidationError{Field: "agent_id", Reason: "no factory registered for " + step.AgentID}
		}
		rt := agent.NewRuntime(a)

		deps := make([]string, 0, len(step.Dependencies))
		for _, dep := range step.Dependencies {
			if agentID, inPlan := agentByStep[dep]; inPlan {
				deps = append(deps, agentID)
			} else {
				deps = append(deps, dep)
			}
		}
		rt.SetDependencies(deps)
		runtimes[step.StepID] = rt
	}
	return runtimes, nil
}

// runStep dispatches one step and blocks until it finishes or the step
// timeout elapses.
func (e *Executor) runStep(rc *core.RunContext, runtimes map[string]*agent.Runtime, step plan.WorkflowStep, result *Result) error {
	rt := runtimes[step.StepID]
	e.seedInputs(rc, step)

	go rt.RunWhenReady(rc, e.depTimeout)

	output, err := rt.AwaitCompletion(rc.Context, e.timeout)
	if err != nil {
		return err
	}
	result.Results[step.AgentID] = output
	return nil
}

// runGroup dispatches the steps of one parallel group concurrently and joins
// them all before returning. Every member runs to completion even when a
// sibling fails; the first failure is reported.
func (e *Executor) runGroup(rc *core.RunContext, runtimes map[string]*agent.Runtime, steps []plan.WorkflowStep, result *Result) error {
	type outcome struct {
		agentID string
		output  map[string]any
		err     error
	}

	var wg sync.WaitGroup
	outcomes := make(chan outcome, len(steps))
	for _, step := range steps {
		step := step
		e.seedInputs(rc, step)
		wg.Add(1)
		go func() {
			defer wg.Done()
			rt := runtimes[step.StepID]
			go rt.RunWhenReady(rc, e.depTimeout)
			output, err := rt.AwaitCompletion(rc.Context, e.timeout)
			outcomes <- outcome{agentID: step.AgentID, output: output, err: err}
		}()
	}
	wg.Wait()
	close(outcomes)

	var firstErr error
	for oc := range outcomes {
		if oc.err != nil {
			if firstErr == nil {
				firstErr = oc.err
			}
			continue
		}
		result.Results[oc.agentID] = oc.output
	}
	return firstErr
}

// seedInputs publishes a step's declared inputs into the state store under
// the agent's input key so the agent can read them uniformly.
func (e *Executor) seedInputs(rc *core.RunContext, step plan.WorkflowStep) {
	if len(step.Inputs) == 0 {
		return
	}
	rc.State.Set(step.AgentID+"_inputs", step.Inputs)
}

// batchSteps splits the step list into dispatch batches: maximal runs of
// consecutive steps sharing a non-empty parallel group id form one batch,
// everything else is a singleton.
func batchSteps(steps []plan.WorkflowStep) [][]plan.WorkflowStep {
	var batches [][]plan.WorkflowStep
	for i := 0; i < len(steps); {
		step := steps[i]
		if step.ParallelGroupID == "" {
			batches = append(batches, []plan.WorkflowStep{step})
			i++
			continue
		}
		j := i + 1
		for j < len(steps) && steps[j].ParallelGroupID == step.ParallelGroupID {
			j++
		}
		batches = append(batches, steps[i:j])
		i = j
	}
	return batches
}
