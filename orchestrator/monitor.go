package orchestrator

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/taskmesh/taskmesh/core"
)

// AgentStats aggregates the lifecycle events of one agent within a run.
type AgentStats struct {
	Started   int
	Completed int
	Failed    int
	// Duration is the wall time between the last started and the last
	// terminal event.
	Duration time.Duration
}

// Metrics is a point-in-time snapshot of a run's progress.
type Metrics struct {
	TotalStarted   int
	TotalCompleted int
	TotalFailed    int
	PerAgent       map[string]AgentStats
}

// Monitor observes a run's bus and aggregates per-agent timing and outcome
// counts. It is passive: it never publishes and never blocks the run.
type Monitor struct {
	mu        sync.Mutex
	stats     map[string]AgentStats
	startedAt map[string]time.Time
}

// NewMonitor constructs a Monitor subscribed to the given bus.
func NewMonitor(b core.EventBus) *Monitor {
	m := &Monitor{
		stats:     make(map[string]AgentStats),
		startedAt: make(map[string]time.Time),
	}
	b.Subscribe(core.EventStarted, m.onStarted)
	b.Subscribe(core.EventCompleted, m.onTerminal(false))
	b.Subscribe(core.EventFailed, m.onTerminal(true))
	return m
}

func (m *Monitor) onStarted(ev core.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stats[ev.SourceID]
	s.Started++
	m.stats[ev.SourceID] = s
	m.startedAt[ev.SourceID] = ev.Timestamp
}

func (m *Monitor) onTerminal(failed bool) core.EventHandler {
	return func(ev core.Event) {
		m.mu.Lock()
		defer m.mu.Unlock()
		s := m.stats[ev.SourceID]
		if failed {
			s.Failed++
		} else {
			s.Completed++
		}
		if started, ok := m.startedAt[ev.SourceID]; ok {
			s.Duration = ev.Timestamp.Sub(started)
		}
		m.stats[ev.SourceID] = s
	}
}

// Metrics returns a snapshot of the aggregated counts.
func (m *Monitor) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := Metrics{PerAgent: make(map[string]AgentStats, len(m.stats))}
	for id, s := range m.stats {
		out.PerAgent[id] = s
		out.TotalStarted += s.Started
		out.TotalCompleted += s.Completed
		out.TotalFailed += s.Failed
	}
	return out
}

// Summary renders the metrics as a human-readable report, one agent per
// line in sorted order.
func (m *Monitor) Summary() string {
	metrics := m.Metrics()

	ids := make([]string, 0, len(metrics.PerAgent))
	for id := range metrics.PerAgent {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var sb strings.Builder
	fmt.Fprintf(&sb, "agents=%d started=%d completed=%d failed=%d\n",
		len(ids), metrics.TotalStarted, metrics.TotalCompleted, metrics.TotalFailed)
	for _, id := range ids {
		s := metrics.PerAgent[id]
		fmt.Fprintf(&sb, "  %s: started=%d completed=%d failed=%d duration=%s\n",
			id, s.Started, s.Completed, s.Failed, s.Duration)
	}
	return sb.String()
}
