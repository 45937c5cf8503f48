package agent

import "github.com/taskmesh/taskmesh/core"

// FuncAgent adapts a plain function into a core.Agent. It is the lightest
// way to register behavior without declaring a type.
type FuncAgent struct {
	id          string
	description string
	deps        []string
	fn          func(rc *core.RunContext) (map[string]any, error)
}

// NewFuncAgent constructs a FuncAgent with optional overrides.
func NewFuncAgent(id string, fn func(rc *core.RunContext) (map[string]any, error), optFns ...func(o *FuncAgentOptions)) *FuncAgent {
	opts := FuncAgentOptions{
		Description: "Agent " + id,
	}
	for _, optFn := range optFns {
		optFn(&opts)
	}
	return &FuncAgent{
		id:          id,
		description: opts.Description,
		deps:        append([]string(nil), opts.Dependencies...),
		fn:          fn,
	}
}

// FuncAgentOptions holds configuration overrides for NewFuncAgent.
type FuncAgentOptions struct {
	// Description is the human-readable purpose shown in catalogs.
	Description string
	// Dependencies lists the agent ids whose output must exist before
	// this agent runs.
	Dependencies []string
}

// ID returns the agent identifier.
func (a *FuncAgent) ID() string { return a.id }

// Description returns the human-readable purpose of this agent.
func (a *FuncAgent) Description() string { return a.description }

// Dependencies returns the agent ids this agent waits on.
func (a *FuncAgent) Dependencies() []string {
	return append([]string(nil), a.deps...)
}

// Execute invokes the wrapped function.
func (a *FuncAgent) Execute(rc *core.RunContext) (map[string]any, error) {
	return a.fn(rc)
}
