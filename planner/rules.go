package planner

import (
	"sort"

	"github.com/taskmesh/taskmesh/plan"
)

// Classification is the upstream intent analysis a rule engine matches
// against. It is produced before planning (by an intent stage or by the
// caller) and travels with the request.
type Classification struct {
	PrimaryIntent    string   `json:"primary_intent" yaml:"primary_intent"`
	ConfidenceScore  float64  `json:"confidence_score" yaml:"confidence_score"`
	UrgencyLevel     string   `json:"urgency_level" yaml:"urgency_level"`
	SLARiskScore     float64  `json:"sla_risk_score" yaml:"sla_risk_score"`
	SecondaryIntents []string `json:"secondary_intents,omitempty" yaml:"secondary_intents,omitempty"`
	Reasoning        string   `json:"reasoning,omitempty" yaml:"reasoning,omitempty"`
}

// Operator compares a classification field against a rule value.
type Operator string

const (
	// OpIn matches when the field value appears in the rule's value list.
	OpIn Operator = "in"
	// OpEqual matches on equality.
	OpEqual Operator = "=="
	// OpGreater matches when the numeric field exceeds the rule value.
	OpGreater Operator = ">"
)

// Rule maps one classification condition onto a workflow template and
// strategy. Lower priority numbers are evaluated first.
type Rule struct {
	Priority int           `json:"priority" yaml:"priority"`
	Field    string        `json:"field" yaml:"field"`
	Operator Operator      `json:"operator" yaml:"operator"`
	Value    any           `json:"value" yaml:"value"`
	Template string        `json:"template" yaml:"template"`
	Strategy plan.Strategy `json:"strategy" yaml:"strategy"`
}

// Matches reports whether the rule's condition holds for c.
func (r Rule) Matches(c Classification) bool {
	field, ok := fieldValue(c, r.Field)
	if !ok {
		return false
	}
	switch r.Operator {
	case OpIn:
		for _, v := range toSlice(r.Value) {
			if valueEqual(field, v) {
				return true
			}
		}
		return false
	case OpEqual:
		return valueEqual(field, r.Value)
	case OpGreater:
		fn, okF := toFloat(field)
		vn, okV := toFloat(r.Value)
		return okF && okV && fn > vn
	}
	return false
}

// RuleSet is an ordered rule collection plus the defaults used when no rule
// matches.
type RuleSet struct {
	Rules           []Rule        `json:"rules" yaml:"rules"`
	DefaultTemplate string        `json:"default_template" yaml:"default_template"`
	DefaultStrategy plan.Strategy `json:"default_strategy" yaml:"default_strategy"`
}

// Select evaluates the rules in ascending priority order (stable for equal
// priorities) and returns the template and strategy of the first match, or
// the defaults. Evaluation is deterministic: the same classification always
// selects the same outcome.
func (rs RuleSet) Select(c Classification) (string, plan.Strategy) {
	ordered := make([]Rule, len(rs.Rules))
	copy(ordered, rs.Rules)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Priority < ordered[j].Priority })

	for _, rule := range ordered {
		if rule.Matches(c) {
			return rule.Template, rule.Strategy
		}
	}
	return rs.DefaultTemplate, rs.DefaultStrategy
}

// fieldValue resolves a rule field name against the classification.
func fieldValue(c Classification, field string) (any, bool) {
	switch field {
	case "primary_intent":
		return c.PrimaryIntent, true
	case "confidence_score":
		return c.ConfidenceScore, true
	case "urgency_level":
		return c.UrgencyLevel, true
	case "sla_risk_score":
		return c.SLARiskScore, true
	}
	return nil, false
}

// valueEqual compares two scalars, treating all numeric types as float64 so
// YAML ints and JSON floats compare equal.
func valueEqual(a, b any) bool {
	if an, ok := toFloat(a); ok {
		bn, ok := toFloat(b)
		return ok && an == bn
	}
	return a == b
}

// toFloat widens any numeric representation produced by the YAML and JSON
// decoders to float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// toSlice normalizes a rule value to a slice for OpIn matching.
func toSlice(v any) []any {
	switch s := v.(type) {
	case []any:
		return s
	case []string:
		out := make([]any, len(s))
		for i, e := range s {
			out[i] = e
		}
		return out
	}
	return []any{v}
}
