package core

// Agent is the contract every unit of work implements, whether built in or an
// external collaborator (retrieval, memory, reasoning, safety filtering).
//
// Agents consume shared data only through the RunContext's state store
// (Get/GetOr/WaitFor) and produce output solely by returning a result map:
// the lifecycle runtime persists it under the agent's output key. Agents must
// not write arbitrary keys themselves except where explicitly documented
// (e.g. a retrieval collaborator publishing retrieved_context).
type Agent interface {
	// ID returns the agent's registry identifier.
	ID() string
	// Description returns a short human-readable purpose statement.
	Description() string
	// Dependencies lists agent ids whose output keys must exist before this
	// agent may run.
	Dependencies() []string
	// Execute performs the agent's work and returns its result map.
	Execute(rc *RunContext) (map[string]any, error)
}

// OutputKey returns the state store key under which an agent's result is
// persisted. Dependency gating checks for the presence of these keys.
func OutputKey(agentID string) string { return agentID + "_output" }

// AgentDescriptor is a read-only registry entry describing what an agent does
// and what it needs. Planners reason about descriptors; they never touch the
// implementations.
type AgentDescriptor struct {
	ID           string            `json:"id" yaml:"id"`
	Description  string            `json:"description" yaml:"description"`
	Capabilities []string          `json:"capabilities" yaml:"capabilities"`
	Dependencies []string          `json:"dependencies" yaml:"dependencies"`
	InputSchema  map[string]string `json:"input_schema,omitempty" yaml:"input_schema,omitempty"`
	OutputSchema map[string]string `json:"output_schema,omitempty" yaml:"output_schema,omitempty"`
	CostTier     string            `json:"cost_tier" yaml:"cost_tier"`
}

// HasCapability reports whether the descriptor lists the given capability.
func (d AgentDescriptor) HasCapability(capability string) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
