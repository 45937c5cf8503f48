package core

// Status tracks the lifecycle of one agent instance within one run. It is
// never shared across runs.
type Status int

const (
	// StatusIdle means the agent has not been asked to run yet.
	StatusIdle Status = iota
	// StatusWaiting means a dependency-gated run was requested before all
	// dependencies produced output.
	StatusWaiting
	// StatusRunning means the agent's Execute is in flight.
	StatusRunning
	// StatusCompleted means Execute returned successfully and the output key
	// was written.
	StatusCompleted
	// StatusFailed means Execute returned an error.
	StatusFailed
)

// String returns the lowercase name of the status.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusWaiting:
		return "waiting"
	case StatusRunning:
		return "running"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the status is final for this run.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }
