// Package orchestrator ties the coordinator together: it owns one run's bus
// and state store, produces a plan through the configured planning mode,
// gates execution behind an optional approver and hands the plan to the
// executor. Every run is isolated; nothing is shared between runs except the
// registry and configuration.
package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/taskmesh/taskmesh/agent"
	"github.com/taskmesh/taskmesh/bus"
	"github.com/taskmesh/taskmesh/config"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/executor"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/plan"
	"github.com/taskmesh/taskmesh/planner"
	"github.com/taskmesh/taskmesh/state"
)

// Status classifies how a run ended.
type Status string

const (
	// StatusCompleted means every plan step produced output.
	StatusCompleted Status = "completed"
	// StatusCancelled means the approver rejected the plan; nothing ran.
	StatusCancelled Status = "cancelled"
	// StatusFailed means a step failed and the rest were skipped.
	StatusFailed Status = "failed"
)

// Request is one unit of work handed to the orchestrator.
type Request struct {
	// Text is the raw user input.
	Text string
	// Classification is the upstream intent analysis. Required in rules
	// mode; a missing classification degrades to the fallback plan.
	Classification *planner.Classification
	// Metadata travels with the input into the state store.
	Metadata map[string]any
}

// Outcome is the result of one run.
type Outcome struct {
	Status  Status
	RunID   string
	Plan    *plan.ExecutionPlan
	Results map[string]map[string]any
	Metrics Metrics
	Err     error
}

// Approver decides whether a presented plan may execute.
type Approver interface {
	Approve(summary string) bool
}

// AutoApprover approves or rejects every plan unconditionally.
type AutoApprover struct {
	Decision bool
}

// Approve returns the fixed decision.
func (a AutoApprover) Approve(string) bool { return a.Decision }

// Options holds configuration overrides passed to New().
type Options struct {
	// Config supplies mode, timeouts, catalog and rules. Nil means the
	// built-in defaults.
	Config *config.Config
	// Model backs advisory planning. Required for ModeAdvisory; without
	// it the orchestrator degrades to rules mode.
	Model model.Model
	// Approver gates execution when the configuration requires approval.
	Approver Approver
	Logger   logging.Logger
}

// Orchestrator coordinates planning, approval and execution over a shared
// agent registry. It is safe for concurrent Run calls.
type Orchestrator struct {
	cfg      *config.Config
	registry *agent.Registry
	builder  *planner.Builder
	advisor  *planner.Advisor
	executor *executor.Executor
	approver Approver
	logger   logging.Logger
}

// New constructs an Orchestrator over the given registry.
func New(registry *agent.Registry, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Approver: AutoApprover{Decision: true},
		Logger:   logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Approver == nil {
		opts.Approver = AutoApprover{Decision: true}
	}

	o := &Orchestrator{
		cfg:      opts.Config,
		registry: registry,
		builder:  planner.NewBuilder(registry),
		approver: opts.Approver,
		logger:   opts.Logger,
		executor: executor.New(registry, func(eo *executor.Options) {
			eo.DependencyTimeout = opts.Config.DependencyTimeout.Std()
			eo.StepTimeout = opts.Config.StepTimeout.Std()
			eo.Logger = opts.Logger
		}),
	}
	if opts.Config.Mode == config.ModeAdvisory {
		if opts.Model != nil {
			o.advisor = planner.NewAdvisor(opts.Model, func(ao *planner.AdvisorOptions) {
				ao.Logger = opts.Logger
			})
		} else {
			o.logger.Warn("advisory mode configured without a model, using rule-based planning")
		}
	}
	return o
}

// Run plans and executes one request. The returned outcome always carries
// the run id and the selected plan; results are partial when a step failed.
func (o *Orchestrator) Run(ctx context.Context, req Request) *Outcome {
	runID := core.NewID()
	runBus := bus.New(func(bo *bus.Options) { bo.Logger = o.logger })
	rc := core.NewRunContext(ctx, runID, runBus, state.New(), o.logger)
	monitor := NewMonitor(runBus)

	p, proposal := o.buildPlan(ctx, req)
	o.logger.Info("plan selected", "run_id", runID, "plan_id", p.PlanID, "strategy", string(p.Strategy), "steps", len(p.Steps))

	summary := PlanSummary(p)
	if proposal != nil {
		summary += proposalNotes(*proposal)
	}
	if o.cfg.RequireApproval && !o.approver.Approve(summary) {
		o.logger.Info("plan rejected by approver", "run_id", runID, "plan_id", p.PlanID)
		return &Outcome{Status: StatusCancelled, RunID: runID, Plan: p, Metrics: monitor.Metrics()}
	}

	res, err := o.executor.Execute(rc, p, o.seed(req, p))
	outcome := &Outcome{
		Status: StatusCompleted,
		RunID:  runID,
		Plan:   p,
		Err:    err,
	}
	if res != nil {
		outcome.Results = res.Results
	}
	if err != nil {
		outcome.Status = StatusFailed
	}
	outcome.Metrics = monitor.Metrics()
	return outcome
}

// buildPlan produces the execution plan for req according to the configured
// mode. It never fails; every degradation path ends in a valid plan. In
// advisory mode the accepted proposal is returned alongside the plan so its
// commentary can accompany the approval presentation.
func (o *Orchestrator) buildPlan(ctx context.Context, req Request) (*plan.ExecutionPlan, *planner.Proposal) {
	if o.advisor != nil {
		proposal := o.advisor.Propose(ctx, req.Text, o.registry.Descriptors(), o.cfg.Templates)
		return planner.PlanFromProposal(proposal), &proposal
	}

	if req.Classification == nil {
		o.logger.Warn("classification missing in rule-based mode, using fallback plan",
			"error", &core.ValidationError{Field: "classification", Reason: "required in rules mode"})
		return o.builder.FallbackPlan(), nil
	}

	tmplName, strategy := o.cfg.Rules.Select(*req.Classification)
	tmpl, ok := o.cfg.Templates[tmplName]
	if !ok {
		o.logger.Warn("selected template not configured, using fallback plan", "template", tmplName)
		return o.builder.FallbackPlan(), nil
	}

	intent := req.Classification.PrimaryIntent
	if intent == "" {
		intent = tmplName
	}
	return o.builder.Build(intent, strategy, tmpl), nil
}

// proposalNotes renders the advisory model's commentary for the approval
// presentation.
func proposalNotes(p planner.Proposal) string {
	var sb strings.Builder
	if p.Reasoning != "" {
		fmt.Fprintf(&sb, "  reasoning: %s\n", p.Reasoning)
	}
	if p.EstimatedTime != "" {
		fmt.Fprintf(&sb, "  estimated time: %s\n", p.EstimatedTime)
	}
	if p.EstimatedCost != "" {
		fmt.Fprintf(&sb, "  estimated cost: %s\n", p.EstimatedCost)
	}
	return sb.String()
}

// seed assembles the state entries committed before the first step: the raw
// input, any classification and the planning output the plan's external
// dependency edges gate on.
func (o *Orchestrator) seed(req Request, p *plan.ExecutionPlan) map[string]any {
	seed := map[string]any{
		"user_input": req.Text,
		core.OutputKey(planner.PlannerID): map[string]any{
			"plan_id":  p.PlanID,
			"strategy": string(p.Strategy),
		},
	}
	if req.Classification != nil {
		seed[core.OutputKey("intent_agent")] = map[string]any{
			"primary_intent":   req.Classification.PrimaryIntent,
			"confidence_score": req.Classification.ConfidenceScore,
			"urgency_level":    req.Classification.UrgencyLevel,
			"sla_risk_score":   req.Classification.SLARiskScore,
		}
	}
	for k, v := range req.Metadata {
		seed[k] = v
	}
	return seed
}

// PlanSummary renders a plan for human approval: one line per step with its
// dependencies.
func PlanSummary(p *plan.ExecutionPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Plan %s (%s, %d steps)\n", p.PlanID, p.Strategy, len(p.Steps))
	for i, step := range p.Steps {
		fmt.Fprintf(&sb, "  %d. %s", i+1, step.AgentID)
		if step.ParallelGroupID != "" {
			fmt.Fprintf(&sb, " [group %s]", step.ParallelGroupID)
		}
		if len(step.Dependencies) > 0 {
			fmt.Fprintf(&sb, " (after %s)", strings.Join(step.Dependencies, ", "))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
