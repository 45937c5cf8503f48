package planner

import (
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/plan"
)

// Template describes a reusable workflow shape: the agents it typically
// involves and the vocabulary that hints at it. Templates are configuration
// data; the Builder turns one into a concrete plan.
type Template struct {
	Description   string   `json:"description" yaml:"description"`
	TypicalAgents []string `json:"typical_agents" yaml:"typical_agents"`
	Keywords      []string `json:"keywords,omitempty" yaml:"keywords,omitempty"`
}

// PlannerID is the identifier of the planning stage itself. Plans reference
// it as an external dependency so no step starts before planning output is
// committed to the state store.
const PlannerID = "planner_agent"

// ContextGroupID names the parallel group that gathers context concurrently.
const ContextGroupID = "context_gathering_phase"

// readCapability marks agents that only read external context and can
// therefore run side by side.
const readCapability = "read"

// DescriptorSource resolves agent descriptors for capability partitioning.
// *agent.Registry satisfies it.
type DescriptorSource interface {
	Descriptor(id string) (core.AgentDescriptor, bool)
}

// BuilderOptions holds configuration overrides for NewBuilder.
type BuilderOptions struct {
	// ExcludeUpstream lists agent ids that already ran before planning and
	// must never reappear as plan steps.
	ExcludeUpstream []string
}

// Builder constructs executable plans from templates. It excludes upstream
// stages, derives step ids from agent ids and wires dependency edges
// according to the requested strategy.
type Builder struct {
	descriptors DescriptorSource
	exclude     map[string]struct{}
}

// NewBuilder constructs a Builder over the given descriptor source.
func NewBuilder(descriptors DescriptorSource, optFns ...func(o *BuilderOptions)) *Builder {
	opts := BuilderOptions{
		ExcludeUpstream: []string{"ingestion_agent", "intent_agent", PlannerID},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	exclude := make(map[string]struct{}, len(opts.ExcludeUpstream))
	for _, id := range opts.ExcludeUpstream {
		exclude[id] = struct{}{}
	}
	return &Builder{descriptors: descriptors, exclude: exclude}
}

// Build turns a template into an execution plan for the given intent and
// strategy. Upstream stages are dropped from the template's agent list; when
// nothing remains, or the strategy degrades to an empty shape, the fallback
// plan is returned. Build never fails.
func (b *Builder) Build(intent string, strategy plan.Strategy, tmpl Template) *plan.ExecutionPlan {
	agents := b.filterUpstream(tmpl.TypicalAgents)
	if len(agents) == 0 {
		return b.FallbackPlan()
	}

	switch strategy {
	case plan.StrategyParallel:
		if p := b.buildParallel(intent, agents); p != nil {
			return p
		}
		// Not enough concurrent work; fall through to a serial chain.
		return b.buildSerial(intent, plan.StrategySerial, agents)
	case plan.StrategyDynamicDAG:
		// Dependency-driven scheduling degrades to serial dispatch.
		return b.buildSerial(intent, plan.StrategySerial, agents)
	default:
		return b.buildSerial(intent, plan.StrategySerial, agents)
	}
}

// FallbackPlan is the minimal plan used whenever no richer plan can be
// built: a single synthesis step producing a direct response. It never
// fails and is always valid.
func (b *Builder) FallbackPlan() *plan.ExecutionPlan {
	return &plan.ExecutionPlan{
		PlanID:   "plan_fallback_serial",
		Strategy: plan.StrategySerial,
		Steps: []plan.WorkflowStep{
			{
				StepID:       "step_response_synthesis",
				AgentID:      "response_synthesis",
				Description:  "Produce a direct response without intermediate stages",
				Dependencies: []string{PlannerID},
			},
		},
	}
}

// buildSerial chains the agents into strictly ordered steps. The first step
// gates on planning output; each later step gates on its predecessor.
func (b *Builder) buildSerial(intent string, strategy plan.Strategy, agents []string) *plan.ExecutionPlan {
	steps := make([]plan.WorkflowStep, 0, len(agents))
	prev := PlannerID
	for _, agentID := range agents {
		step := plan.WorkflowStep{
			StepID:       stepID(agentID),
			AgentID:      agentID,
			Description:  b.describe(agentID),
			Dependencies: []string{prev},
		}
		steps = append(steps, step)
		prev = step.StepID
	}
	return &plan.ExecutionPlan{
		PlanID:   planID(intent, strategy),
		Strategy: strategy,
		Steps:    steps,
	}
}

// buildParallel splits the agents into read-only context gatherers, which
// run concurrently in one group, and a serial tail gated on the whole group.
// It returns nil when fewer than two gatherers exist, since a one-member
// group buys nothing over a chain.
func (b *Builder) buildParallel(intent string, agents []string) *plan.ExecutionPlan {
	var gatherers, tail []string
	for _, agentID := range agents {
		if b.isReader(agentID) {
			gatherers = append(gatherers, agentID)
		} else {
			tail = append(tail, agentID)
		}
	}
	if len(gatherers) < 2 {
		return nil
	}

	steps := make([]plan.WorkflowStep, 0, len(agents))
	groupStepIDs := make([]string, 0, len(gatherers))
	for _, agentID := range gatherers {
		step := plan.WorkflowStep{
			StepID:          stepID(agentID),
			AgentID:         agentID,
			Description:     b.describe(agentID),
			Dependencies:    []string{PlannerID},
			ParallelGroupID: ContextGroupID,
		}
		steps = append(steps, step)
		groupStepIDs = append(groupStepIDs, step.StepID)
	}

	prev := groupStepIDs
	for _, agentID := range tail {
		step := plan.WorkflowStep{
			StepID:       stepID(agentID),
			AgentID:      agentID,
			Description:  b.describe(agentID),
			Dependencies: append([]string(nil), prev...),
		}
		steps = append(steps, step)
		prev = []string{step.StepID}
	}

	return &plan.ExecutionPlan{
		PlanID:   planID(intent, plan.StrategyParallel),
		Strategy: plan.StrategyParallel,
		Steps:    steps,
	}
}

func (b *Builder) filterUpstream(agents []string) []string {
	out := make([]string, 0, len(agents))
	for _, id := range agents {
		if _, skip := b.exclude[id]; skip {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (b *Builder) isReader(agentID string) bool {
	if b.descriptors == nil {
		return false
	}
	desc, ok := b.descriptors.Descriptor(agentID)
	return ok && desc.HasCapability(readCapability)
}

func (b *Builder) describe(agentID string) string {
	if b.descriptors != nil {
		if desc, ok := b.descriptors.Descriptor(agentID); ok && desc.Description != "" {
			return desc.Description
		}
	}
	return "Run " + agentID
}

func stepID(agentID string) string { return "step_" + agentID }

func planID(intent string, strategy plan.Strategy) string {
	return "plan_" + intent + "_" + string(strategy)
}
