package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/plan"
)

// Proposal is the structured answer expected from an advisory model: which
// agents to run, in what order, and which depends on which. The optional
// fields carry the model's own commentary and estimates for plan
// presentation.
type Proposal struct {
	SelectedAgents []string            `json:"selected_agents"`
	ExecutionOrder []string            `json:"execution_order"`
	Dependencies   map[string][]string `json:"dependencies"`
	Reasoning      string              `json:"reasoning,omitempty"`
	EstimatedTime  string              `json:"estimated_time,omitempty"`
	EstimatedCost  string              `json:"estimated_cost,omitempty"`
}

// AdvisorOptions holds configuration overrides for NewAdvisor.
type AdvisorOptions struct {
	Logger      logging.Logger
	MaxTokens   int64
	Temperature float64
}

// Advisor asks a language model to propose a workflow and hardens the answer:
// the raw text is parsed strictly, validated against the agent catalog and
// replaced by a fixed default whenever the model fails, returns junk or
// references unknown agents. Propose therefore never fails.
type Advisor struct {
	model       model.Model
	logger      logging.Logger
	maxTokens   int64
	temperature float64
}

// NewAdvisor constructs an Advisor around m with optional overrides.
func NewAdvisor(m model.Model, optFns ...func(o *AdvisorOptions)) *Advisor {
	opts := AdvisorOptions{
		Logger:      logging.NoOpLogger{},
		MaxTokens:   1024,
		Temperature: 0.2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Advisor{
		model:       m,
		logger:      opts.Logger,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
	}
}

// Propose obtains a workflow proposal for the given request text. Any model
// error, malformed answer or invalid agent reference is logged and replaced
// by DefaultProposal; the returned proposal is always usable.
func (a *Advisor) Propose(ctx context.Context, input string, catalog []core.AgentDescriptor, templates map[string]Template) Proposal {
	known := make(map[string]struct{}, len(catalog))
	for _, desc := range catalog {
		known[desc.ID] = struct{}{}
	}

	raw, err := a.model.Generate(ctx, model.Request{
		Prompt:      buildPrompt(input, catalog, templates),
		MaxTokens:   a.maxTokens,
		Temperature: a.temperature,
	})
	if err != nil {
		a.logger.Warn("advisory model call failed, using default workflow", "error", err)
		return DefaultProposal()
	}

	proposal, err := ParseProposal(raw)
	if err != nil {
		a.logger.Warn("advisory proposal rejected, using default workflow", "error", err)
		return DefaultProposal()
	}

	for _, id := range proposal.SelectedAgents {
		if _, ok := known[id]; !ok {
			a.logger.Warn("advisory proposal references unknown agent, using default workflow", "agent_id", id)
			return DefaultProposal()
		}
	}
	return proposal
}

// ParseProposal parses the raw model answer into a Proposal. It tolerates
// markdown code fences and prose around the JSON object, but the object
// itself must be well formed: a non-empty selected_agents list whose
// dependencies only reference selected agents. Violations yield a
// core.PlanningError.
func ParseProposal(raw string) (Proposal, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return Proposal{}, &core.PlanningError{Reason: "no JSON object in model answer"}
	}

	var proposal Proposal
	if err := json.Unmarshal([]byte(text[start:end+1]), &proposal); err != nil {
		return Proposal{}, &core.PlanningError{Reason: "proposal parse failed", Err: err}
	}

	if len(proposal.SelectedAgents) == 0 {
		return Proposal{}, &core.PlanningError{Reason: "proposal selects no agents"}
	}

	selected := make(map[string]struct{}, len(proposal.SelectedAgents))
	for _, id := range proposal.SelectedAgents {
		selected[id] = struct{}{}
	}
	if len(proposal.ExecutionOrder) == 0 {
		proposal.ExecutionOrder = append([]string(nil), proposal.SelectedAgents...)
	}
	for _, id := range proposal.ExecutionOrder {
		if _, ok := selected[id]; !ok {
			return Proposal{}, &core.PlanningError{Reason: fmt.Sprintf("execution order references unselected agent %s", id)}
		}
	}
	for id, deps := range proposal.Dependencies {
		if _, ok := selected[id]; !ok {
			return Proposal{}, &core.PlanningError{Reason: fmt.Sprintf("dependencies reference unselected agent %s", id)}
		}
		for _, dep := range deps {
			if _, ok := selected[dep]; !ok {
				return Proposal{}, &core.PlanningError{Reason: fmt.Sprintf("agent %s depends on unselected agent %s", id, dep)}
			}
		}
	}
	return proposal, nil
}

// DefaultProposal is the fixed linear workflow used whenever the model gives
// no usable answer: gather context, reason over it, synthesize a response.
func DefaultProposal() Proposal {
	return Proposal{
		SelectedAgents: []string{"retrieval_agent", "reasoning_agent", "response_synthesis"},
		ExecutionOrder: []string{"retrieval_agent", "reasoning_agent", "response_synthesis"},
		Dependencies: map[string][]string{
			"reasoning_agent":    {"retrieval_agent"},
			"response_synthesis": {"reasoning_agent"},
		},
		Reasoning: "default linear workflow",
	}
}

// PlanFromProposal converts a validated proposal into a serial execution
// plan. Agents without in-proposal dependencies gate on planning output.
func PlanFromProposal(p Proposal) *plan.ExecutionPlan {
	steps := make([]plan.WorkflowStep, 0, len(p.ExecutionOrder))
	for _, agentID := range p.ExecutionOrder {
		deps := p.Dependencies[agentID]
		stepDeps := make([]string, 0, len(deps))
		for _, dep := range deps {
			stepDeps = append(stepDeps, stepID(dep))
		}
		if len(stepDeps) == 0 {
			stepDeps = []string{PlannerID}
		}
		steps = append(steps, plan.WorkflowStep{
			StepID:       stepID(agentID),
			AgentID:      agentID,
			Dependencies: stepDeps,
		})
	}
	return &plan.ExecutionPlan{
		PlanID:   planID("advisory", plan.StrategySerial),
		Strategy: plan.StrategySerial,
		Steps:    steps,
	}
}

// buildPrompt renders the agent and template catalogs into the instruction
// the advisory model answers. Catalog order is sorted for prompt stability.
func buildPrompt(input string, catalog []core.AgentDescriptor, templates map[string]Template) string {
	var sb strings.Builder
	sb.WriteString("You are a workflow planner. Select the agents needed to handle the request below.\n\n")

	sb.WriteString("Available agents:\n")
	for _, desc := range catalog {
		sb.WriteString(fmt.Sprintf("- %s: %s", desc.ID, desc.Description))
		if len(desc.Capabilities) > 0 {
			sb.WriteString(" (capabilities: " + strings.Join(desc.Capabilities, ", ") + ")")
		}
		sb.WriteString("\n")
	}

	if len(templates) > 0 {
		names := make([]string, 0, len(templates))
		for name := range templates {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("\nKnown workflow templates:\n")
		for _, name := range names {
			tmpl := templates[name]
			sb.WriteString(fmt.Sprintf("- %s: %s (typical agents: %s)\n",
				name, tmpl.Description, strings.Join(tmpl.TypicalAgents, ", ")))
		}
	}

	sb.WriteString("\nRequest:\n")
	sb.WriteString(input)
	sb.WriteString("\n\nAnswer with a single JSON object, no prose, shaped exactly like:\n")
	sb.WriteString(`{"selected_agents": ["..."], "execution_order": ["..."], "dependencies": {"agent": ["prerequisite"]}, "reasoning": "...", "estimated_time": "...", "estimated_cost": "..."}`)
	sb.WriteString("\nOnly reference agents from the list above.\n")
	return sb.String()
}
