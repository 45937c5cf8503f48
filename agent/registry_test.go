package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskmesh/taskmesh/core"
)

func noopFactory(id string) Factory {
	return func() core.Agent {
		return NewFuncAgent(id, func(rc *core.RunContext) (map[string]any, error) {
			return map[string]any{}, nil
		})
	}
}

func TestRegistry_RegisterAndNew(t *testing.T) {
	r := NewRegistry()
	r.Register("retrieval_agent", noopFactory("retrieval_agent"))

	a, ok := r.New("retrieval_agent")
	require.True(t, ok)
	assert.Equal(t, "retrieval_agent", a.ID())

	b, _ := r.New("retrieval_agent")
	assert.NotSame(t, a, b, "each New call must produce a fresh instance")

	_, ok = r.New("unknown")
	assert.False(t, ok)
}

func TestRegistry_IDsSorted(t *testing.T) {
	r := NewRegistry()
	r.Register("zeta", noopFactory("zeta"))
	r.Register("alpha", noopFactory("alpha"))
	assert.Equal(t, []string{"alpha", "zeta"}, r.IDs())
}

func TestRegistry_ValidateFailsFast(t *testing.T) {
	r := NewRegistry()
	r.Register("known", noopFactory("known"))

	require.NoError(t, r.Validate([]string{"known"}))

	err := r.Validate([]string{"known", "missing"})
	require.Error(t, err)
	var ve *core.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Reason, "missing")
}

func TestRegistry_ByCapability(t *testing.T) {
	r := NewRegistry()
	r.RegisterWithDescriptor(core.AgentDescriptor{
		ID:           "retrieval_agent",
		Capabilities: []string{"read", "search"},
	}, noopFactory("retrieval_agent"))
	r.RegisterWithDescriptor(core.AgentDescriptor{
		ID:           "memory_agent",
		Capabilities: []string{"read"},
	}, noopFactory("memory_agent"))
	r.RegisterWithDescriptor(core.AgentDescriptor{
		ID:           "reasoning_agent",
		Capabilities: []string{"analyze"},
	}, noopFactory("reasoning_agent"))

	assert.Equal(t, []string{"memory_agent", "retrieval_agent"}, r.ByCapability("read"))
	assert.Empty(t, r.ByCapability("write"))
}

func TestRegistry_Descriptors(t *testing.T) {
	r := NewRegistry()
	r.Register("plain", noopFactory("plain"))
	r.Describe(core.AgentDescriptor{ID: "plain", Description: "does nothing"})

	descs := r.Descriptors()
	require.Len(t, descs, 1)
	assert.Equal(t, "does nothing", descs[0].Description)
}
