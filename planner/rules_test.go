package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/taskmesh/taskmesh/plan"
)

func testRuleSet() RuleSet {
	return RuleSet{
		Rules: []Rule{
			{
				Priority: 1,
				Field:    "urgency_level",
				Operator: OpEqual,
				Value:    "critical",
				Template: "incident_response",
				Strategy: plan.StrategyParallel,
			},
			{
				Priority: 2,
				Field:    "sla_risk_score",
				Operator: OpGreater,
				Value:    0.8,
				Template: "incident_response",
				Strategy: plan.StrategyParallel,
			},
			{
				Priority: 3,
				Field:    "primary_intent",
				Operator: OpIn,
				Value:    []any{"question", "how_to"},
				Template: "knowledge_query",
				Strategy: plan.StrategySerial,
			},
		},
		DefaultTemplate: "customer_support_ticket",
		DefaultStrategy: plan.StrategySerial,
	}
}

func TestRuleSet_CriticalUrgencySelectsIncidentResponse(t *testing.T) {
	rs := testRuleSet()
	tmpl, strategy := rs.Select(Classification{
		PrimaryIntent: "complaint",
		UrgencyLevel:  "critical",
	})
	assert.Equal(t, "incident_response", tmpl)
	assert.Equal(t, plan.StrategyParallel, strategy)
}

func TestRuleSet_PriorityOrderWins(t *testing.T) {
	rs := testRuleSet()
	// Matches both the urgency rule (priority 1) and the intent rule
	// (priority 3); the lower priority number decides.
	tmpl, strategy := rs.Select(Classification{
		PrimaryIntent: "question",
		UrgencyLevel:  "critical",
	})
	assert.Equal(t, "incident_response", tmpl)
	assert.Equal(t, plan.StrategyParallel, strategy)
}

func TestRuleSet_GreaterOperator(t *testing.T) {
	rs := testRuleSet()
	tmpl, _ := rs.Select(Classification{SLARiskScore: 0.9})
	assert.Equal(t, "incident_response", tmpl)

	tmpl, _ = rs.Select(Classification{SLARiskScore: 0.8})
	assert.Equal(t, "customer_support_ticket", tmpl, "boundary value must not match a strict greater-than")
}

func TestRuleSet_InOperator(t *testing.T) {
	rs := testRuleSet()
	tmpl, strategy := rs.Select(Classification{PrimaryIntent: "how_to"})
	assert.Equal(t, "knowledge_query", tmpl)
	assert.Equal(t, plan.StrategySerial, strategy)
}

func TestRuleSet_DefaultWhenNothingMatches(t *testing.T) {
	rs := testRuleSet()
	tmpl, strategy := rs.Select(Classification{PrimaryIntent: "billing", UrgencyLevel: "low"})
	assert.Equal(t, "customer_support_ticket", tmpl)
	assert.Equal(t, plan.StrategySerial, strategy)
}

func TestRuleSet_Deterministic(t *testing.T) {
	rs := testRuleSet()
	c := Classification{PrimaryIntent: "question", UrgencyLevel: "high", SLARiskScore: 0.85}
	firstTmpl, firstStrategy := rs.Select(c)
	for i := 0; i < 10; i++ {
		tmpl, strategy := rs.Select(c)
		assert.Equal(t, firstTmpl, tmpl)
		assert.Equal(t, firstStrategy, strategy)
	}
}

func TestRule_UnknownFieldNeverMatches(t *testing.T) {
	r := Rule{Field: "nonexistent", Operator: OpEqual, Value: "x"}
	assert.False(t, r.Matches(Classification{}))
}

func TestRule_NumericEqualityAcrossTypes(t *testing.T) {
	// YAML decodes whole numbers as int; they must still compare equal to
	// the float64 classification field.
	r := Rule{Field: "sla_risk_score", Operator: OpEqual, Value: 1}
	assert.True(t, r.Matches(Classification{SLARiskScore: 1.0}))
}
