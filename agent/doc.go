// Package agent provides the execution runtime wrapped around a core.Agent:
// lifecycle status tracking, dependency gating against the shared state
// store, event publication and completion signalling. It also contains the
// Registry, which maps agent identifiers to constructors so a plan can be
// validated before any step runs.
package agent
