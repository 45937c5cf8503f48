package taskmesh

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmesh/taskmesh/config"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/internal/testutil"
	"github.com/taskmesh/taskmesh/orchestrator"
	"github.com/taskmesh/taskmesh/planner"
)

// registerStubs binds a stub factory for every agent in the configuration
// catalog.
func registerStubs(tm *TaskMesh) map[string]*testutil.StubAgent {
	stubs := make(map[string]*testutil.StubAgent)
	for _, desc := range tm.Config().Agents {
		id := desc.ID
		stub := testutil.NewStubAgent(id)
		stub.Result = map[string]any{"by": id}
		stubs[id] = stub
		tm.RegisterAgent(id, func() core.Agent { return stub })
	}
	return stubs
}

func TestTaskMesh_EndToEndRulesMode(t *testing.T) {
	tm := New()
	stubs := registerStubs(tm)

	out := tm.Run(context.Background(), orchestrator.Request{
		Text:           "the checkout service is down",
		Classification: &planner.Classification{PrimaryIntent: "outage", UrgencyLevel: "critical"},
	})

	require.Equal(t, orchestrator.StatusCompleted, out.Status)
	assert.Equal(t, "plan_outage_parallel", out.Plan.PlanID)

	// Upstream stages never reappear as steps.
	assert.Zero(t, stubs["ingestion_agent"].Calls())
	assert.Zero(t, stubs["planner_agent"].Calls())
	assert.Equal(t, 1, stubs["retrieval_agent"].Calls())
	assert.Equal(t, 1, stubs["response_synthesis"].Calls())
}

func TestTaskMesh_FailedAgentFailsRun(t *testing.T) {
	tm := New()
	stubs := registerStubs(tm)
	stubs["reasoning_agent"].Err = errors.New("no capacity")

	out := tm.Run(context.Background(), orchestrator.Request{
		Text:           "ticket",
		Classification: &planner.Classification{PrimaryIntent: "account"},
	})

	require.Equal(t, orchestrator.StatusFailed, out.Status)
	var af *core.AgentFailure
	require.ErrorAs(t, out.Err, &af)
	assert.Equal(t, "reasoning_agent", af.AgentID)
}

func TestTaskMesh_ExplicitConfigWins(t *testing.T) {
	cfg := config.Default()
	cfg.RequireApproval = true

	tm := New(func(o *Options) {
		o.Config = cfg
		o.Approver = orchestrator.AutoApprover{Decision: false}
	})
	registerStubs(tm)

	out := tm.Run(context.Background(), orchestrator.Request{
		Text:           "anything",
		Classification: &planner.Classification{},
	})
	assert.Equal(t, orchestrator.StatusCancelled, out.Status)
}

func TestTaskMesh_CatalogDescriptorsPreRegistered(t *testing.T) {
	tm := New()
	descs := tm.Registry().Descriptors()
	require.NotEmpty(t, descs)
	assert.NotEmpty(t, tm.Registry().ByCapability("read"))
}
