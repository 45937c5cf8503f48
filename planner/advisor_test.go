package planner

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/model"
)

var testCatalog = []core.AgentDescriptor{
	{ID: "retrieval_agent", Description: "Searches the knowledge base"},
	{ID: "reasoning_agent", Description: "Analyzes gathered context"},
	{ID: "response_synthesis", Description: "Writes the final answer"},
	{ID: "a", Description: "First"},
	{ID: "b", Description: "Second"},
}

func TestParseProposal_PlainJSON(t *testing.T) {
	p, err := ParseProposal(`{"selected_agents": ["a", "b"], "execution_order": ["a", "b"], "dependencies": {"b": ["a"]}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.SelectedAgents)
	assert.Equal(t, []string{"a", "b"}, p.ExecutionOrder)
	assert.Equal(t, map[string][]string{"b": {"a"}}, p.Dependencies)
}

func TestParseProposal_FencedWithProse(t *testing.T) {
	raw := "Here is the workflow I recommend:\n```json\n" +
		`{"selected_agents": ["a", "b"], "execution_order": ["a", "b"], "dependencies": {"b": ["a"]}, "reasoning": "b needs a's output"}` +
		"\n```\nLet me know if you want changes."
	p, err := ParseProposal(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.SelectedAgents)
	assert.Equal(t, "b needs a's output", p.Reasoning)
}

func TestParseProposal_MissingOrderDefaultsToSelection(t *testing.T) {
	p, err := ParseProposal(`{"selected_agents": ["a", "b"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, p.ExecutionOrder)
}

func TestParseProposal_Rejections(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no JSON at all", "I cannot help with that."},
		{"malformed JSON", `{"selected_agents": ["a",}`},
		{"empty selection", `{"selected_agents": []}`},
		{"order references unselected", `{"selected_agents": ["a"], "execution_order": ["a", "ghost"]}`},
		{"dependency on unselected", `{"selected_agents": ["a", "b"], "dependencies": {"b": ["ghost"]}}`},
		{"dependency key unselected", `{"selected_agents": ["a"], "dependencies": {"ghost": ["a"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseProposal(tt.raw)
			require.Error(t, err)
			var pe *core.PlanningError
			require.ErrorAs(t, err, &pe)
		})
	}
}

func TestAdvisor_ProposeAcceptsModelAnswer(t *testing.T) {
	m := model.NewMockModel(`{"selected_agents": ["a", "b"], "execution_order": ["a", "b"], "dependencies": {"b": ["a"]}}`)
	a := NewAdvisor(m)

	p := a.Propose(context.Background(), "do the thing", testCatalog, nil)
	assert.Equal(t, []string{"a", "b"}, p.SelectedAgents)

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "retrieval_agent")
	assert.Contains(t, reqs[0].Prompt, "do the thing")
}

func TestAdvisor_ModelErrorFallsBackToDefault(t *testing.T) {
	m := model.NewMockModel("unused")
	m.Err = errors.New("connection refused")
	a := NewAdvisor(m)

	p := a.Propose(context.Background(), "x", testCatalog, nil)
	assert.Equal(t, DefaultProposal(), p)
}

func TestAdvisor_GarbageAnswerFallsBackToDefault(t *testing.T) {
	m := model.NewMockModel("I'd rather write a poem.")
	a := NewAdvisor(m)

	p := a.Propose(context.Background(), "x", testCatalog, nil)
	assert.Equal(t, DefaultProposal(), p)
}

func TestAdvisor_UnknownAgentFallsBackToDefault(t *testing.T) {
	m := model.NewMockModel(`{"selected_agents": ["made_up_agent"]}`)
	a := NewAdvisor(m)

	p := a.Propose(context.Background(), "x", testCatalog, nil)
	assert.Equal(t, DefaultProposal(), p)
}

func TestPlanFromProposal(t *testing.T) {
	p := PlanFromProposal(Proposal{
		SelectedAgents: []string{"a", "b"},
		ExecutionOrder: []string{"a", "b"},
		Dependencies:   map[string][]string{"b": {"a"}},
	})

	require.NoError(t, p.Validate())
	require.Len(t, p.Steps, 2)
	assert.Equal(t, []string{PlannerID}, p.Steps[0].Dependencies)
	assert.Equal(t, []string{"step_a"}, p.Steps[1].Dependencies)
}

func TestDefaultProposalProducesValidPlan(t *testing.T) {
	p := PlanFromProposal(DefaultProposal())
	require.NoError(t, p.Validate())
	assert.Equal(t, []string{"retrieval_agent", "reasoning_agent", "response_synthesis"}, p.AgentIDs())
}
