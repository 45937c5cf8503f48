package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmesh/taskmesh/bus"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/state"
)

func newTestRunContext(t *testing.T) *core.RunContext {
	t.Helper()
	return core.NewRunContext(context.Background(), "run-worker", bus.New(), state.New(), nil)
}

func TestIngestion_NormalizesStringInput(t *testing.T) {
	rc := newTestRunContext(t)
	rc.State.Set("user_input", "  My   printer\n\nis on   fire ")

	out, err := NewIngestionWorker().Execute(rc)
	require.NoError(t, err)
	assert.Equal(t, "ok", out["ingestion_status"])

	payload, ok := out["normalized_payload"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "My printer is on fire", payload["text"])
	assert.NotEmpty(t, payload["request_id"])
	assert.NotEmpty(t, payload["received_at"])
}

func TestIngestion_MapInputCarriesMetadata(t *testing.T) {
	rc := newTestRunContext(t)
	rc.State.Set("user_input", map[string]any{
		"text":    "where are the docs",
		"channel": "chat",
	})

	out, err := NewIngestionWorker().Execute(rc)
	require.NoError(t, err)

	payload := out["normalized_payload"].(map[string]any)
	assert.Equal(t, "where are the docs", payload["text"])
	assert.Equal(t, "chat", payload["channel"])
}

func TestIngestion_DegradesInsteadOfFailing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(rc *core.RunContext)
	}{
		{"missing input", func(rc *core.RunContext) {}},
		{"unsupported type", func(rc *core.RunContext) { rc.State.Set("user_input", 42) }},
		{"blank text", func(rc *core.RunContext) { rc.State.Set("user_input", "   \n\t ") }},
		{"map without text", func(rc *core.RunContext) {
			rc.State.Set("user_input", map[string]any{"channel": "chat"})
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rc := newTestRunContext(t)
			tt.setup(rc)

			out, err := NewIngestionWorker().Execute(rc)
			require.NoError(t, err, "ingestion must degrade, not fail")
			assert.Equal(t, "degraded", out["ingestion_status"])
			assert.NotEmpty(t, out["ingestion_error"])
		})
	}
}

func TestIngestion_CustomInputKey(t *testing.T) {
	rc := newTestRunContext(t)
	rc.State.Set("raw_ticket", "help me")

	out, err := NewIngestionWorker(func(o *IngestionOptions) {
		o.InputKey = "raw_ticket"
	}).Execute(rc)
	require.NoError(t, err)
	assert.Equal(t, "ok", out["ingestion_status"])
}

func TestSynthesis_FoldsContextIntoPrompt(t *testing.T) {
	rc := newTestRunContext(t)
	rc.State.Set("user_input", "refund please")
	rc.State.Set(core.OutputKey("reasoning_agent"), map[string]any{"resolution": "approve refund"})

	m := model.NewMockModel("Your refund is on its way.")
	out, err := NewSynthesisWorker(m).Execute(rc)
	require.NoError(t, err)
	assert.Equal(t, "Your refund is on its way.", out["final_response"])
	assert.Equal(t, "mock", out["model"])

	reqs := m.Requests()
	require.Len(t, reqs, 1)
	assert.Contains(t, reqs[0].Prompt, "refund please")
	assert.Contains(t, reqs[0].Prompt, "approve refund")
}

func TestSynthesis_ModelErrorPropagates(t *testing.T) {
	rc := newTestRunContext(t)
	m := model.NewMockModel("unused")
	m.Err = errors.New("quota exhausted")

	_, err := NewSynthesisWorker(m).Execute(rc)
	require.Error(t, err)
	require.ErrorIs(t, err, m.Err)
}
