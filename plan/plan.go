// Package plan defines the execution plan model shared by planners and
// executors: ordered workflow steps, their dependency edges and the strategy
// that governs dispatch. A plan is pure data; package executor interprets it.
package plan

import (
	"fmt"

	"github.com/taskmesh/taskmesh/core"
)

// Strategy selects how an executor schedules the steps of a plan.
type Strategy string

const (
	// StrategySerial runs steps strictly one after another in plan order.
	StrategySerial Strategy = "serial"
	// StrategyParallel runs steps of the same parallel group concurrently.
	StrategyParallel Strategy = "parallel"
	// StrategyDynamicDAG is reserved for dependency-driven scheduling.
	// Executors currently degrade it to serial dispatch.
	StrategyDynamicDAG Strategy = "dynamic_dag"
)

// Valid reports whether s is a known strategy.
func (s Strategy) Valid() bool {
	switch s {
	case StrategySerial, StrategyParallel, StrategyDynamicDAG:
		return true
	}
	return false
}

// WorkflowStep is one unit of work inside a plan. Dependencies name other
// step ids, or identifiers outside the plan whose output key must already be
// present in the state store (an upstream stage that ran before execution).
type WorkflowStep struct {
	StepID          string         `json:"step_id" yaml:"step_id"`
	AgentID         string         `json:"agent_id" yaml:"agent_id"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	Inputs          map[string]any `json:"inputs,omitempty" yaml:"inputs,omitempty"`
	Dependencies    []string       `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	ParallelGroupID string         `json:"parallel_group_id,omitempty" yaml:"parallel_group_id,omitempty"`
}

// ExecutionPlan is an ordered list of steps plus the dispatch strategy.
type ExecutionPlan struct {
	PlanID   string         `json:"plan_id" yaml:"plan_id"`
	Strategy Strategy       `json:"strategy" yaml:"strategy"`
	Steps    []WorkflowStep `json:"steps" yaml:"steps"`
}

// AgentIDs returns the distinct agent ids referenced by the plan, in first
// appearance order.
func (p *ExecutionPlan) AgentIDs() []string {
	seen := make(map[string]struct{}, len(p.Steps))
	var ids []string
	for _, step := range p.Steps {
		if _, ok := seen[step.AgentID]; ok {
			continue
		}
		seen[step.AgentID] = struct{}{}
		ids = append(ids, step.AgentID)
	}
	return ids
}

// Step returns the step with the given id.
func (p *ExecutionPlan) Step(stepID string) (WorkflowStep, bool) {
	for _, step := range p.Steps {
		if step.StepID == stepID {
			return step, true
		}
	}
	return WorkflowStep{}, false
}

// ExternalDependencies returns every dependency identifier that names no
// step in the plan, deduplicated in first appearance order. These are
// upstream stages the executor gates on through the state store.
func (p *ExecutionPlan) ExternalDependencies() []string {
	inPlan := make(map[string]struct{}, len(p.Steps))
	for _, step := range p.Steps {
		inPlan[step.StepID] = struct{}{}
	}
	seen := make(map[string]struct{})
	var external []string
	for _, step := range p.Steps {
		for _, dep := range step.Dependencies {
			if _, ok := inPlan[dep]; ok {
				continue
			}
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			external = append(external, dep)
		}
	}
	return external
}

// Validate checks the structural invariants every executable plan must hold:
//
//   - a known strategy and at least one step
//   - non-empty, unique step ids and non-empty agent ids
//   - in-plan dependencies only point at earlier steps
//   - steps of one parallel group carry identical dependency sets and no
//     edges onto each other
//
// It returns a core.ValidationError naming the first violated field.
func (p *ExecutionPlan) Validate() error {
	if !p.Strategy.Valid() {
		return &core.ValidationError{Field: "strategy", Reason: fmt.Sprintf("unknown strategy %q", p.Strategy)}
	}
	if len(p.Steps) == 0 {
		return &core.ValidationError{Field: "steps", Reason: "plan has no steps"}
	}

	position := make(map[string]int, len(p.Steps))
	for i, step := range p.Steps {
		if step.StepID == "" {
			return &core.ValidationError{Field: "step_id", Reason: fmt.Sprintf("step %d has an empty id", i)}
		}
		if step.AgentID == "" {
			return &core.ValidationError{Field: "agent_id", Reason: fmt.Sprintf("step %s has an empty agent id", step.StepID)}
		}
		if _, dup := position[step.StepID]; dup {
			return &core.ValidationError{Field: "step_id", Reason: fmt.Sprintf("duplicate step id %s", step.StepID)}
		}
		position[step.StepID] = i
	}

	for i, step := range p.Steps {
		for _, dep := range step.Dependencies {
			if dep == step.StepID {
				return &core.ValidationError{Field: "dependencies", Reason: fmt.Sprintf("step %s depends on itself", step.StepID)}
			}
			pos, ok := position[dep]
			if !ok {
				// External predecessor, satisfied through the state store.
				continue
			}
			if pos >= i {
				return &core.ValidationError{Field: "dependencies", Reason: fmt.Sprintf("step %s references later step %s", step.StepID, dep)}
			}
		}
	}

	return p.validateParallelGroups()
}

// validateParallelGroups enforces that sibling steps of a parallel group are
// mutually independent and interchangeable in dispatch order.
func (p *ExecutionPlan) validateParallelGroups() error {
	groups := make(map[string][]WorkflowStep)
	for _, step := range p.Steps {
		if step.ParallelGroupID != "" {
			groups[step.ParallelGroupID] = append(groups[step.ParallelGroupID], step)
		}
	}

	for groupID, steps := range groups {
		members := make(map[string]struct{}, len(steps))
		for _, step := range steps {
			members[step.StepID] = struct{}{}
		}
		want := depSet(steps[0].Dependencies)
		for _, step := range steps {
			for _, dep := range step.Dependencies {
				if _, sibling := members[dep]; sibling {
					return &core.ValidationError{
						Field:  "parallel_group_id",
						Reason: fmt.Sprintf("step %s depends on sibling %s in group %s", step.StepID, dep, groupID),
					}
				}
			}
			if got := depSet(step.Dependencies); !sameSet(want, got) {
				return &core.ValidationError{
					Field:  "parallel_group_id",
					Reason: fmt.Sprintf("steps of group %s carry differing dependency sets", groupID),
				}
			}
		}
	}
	return nil
}

func depSet(deps []string) map[string]struct{} {
	set := make(map[string]struct{}, len(deps))
	for _, d := range deps {
		set[d] = struct{}{}
	}
	return set
}

func sameSet(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
