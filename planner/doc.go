// Package planner turns a classified request into an executable plan. Two
// modes are provided: a deterministic rule engine that maps classification
// attributes onto workflow templates, and an advisory mode that asks a
// language model for a proposal and degrades to a fixed default when the
// model misbehaves. Both modes end in plan construction, never in an
// unplanned run: FallbackPlan always yields a minimal single-step plan.
package planner
