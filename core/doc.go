// Package core provides the foundational domain types, interfaces and execution
// contexts used by TaskMesh. It defines the core abstractions for:
//
//   - Agents (opaque units of work exchanging keyed data)
//   - Events (immutable lifecycle notifications with an event bus contract)
//   - The shared state store contract (keyed blackboard with blocking reads)
//   - RunContext (scoped execution environment handed to agents)
//   - The error taxonomy shared by planners, runtimes and executors
//
// The package intentionally keeps implementation concerns (bus dispatch,
// store synchronization, plan construction, execution) out of scope, exposing
// small interfaces to enable custom backends and extensions.
package core
