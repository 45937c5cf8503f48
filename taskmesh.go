// Package taskmesh provides a high-level façade over the workflow
// coordinator: agent registry, planning and execution behind a small
// surface. Most applications interact with this package by:
//  1. Creating a TaskMesh via New() (optionally loading a YAML configuration)
//  2. Registering agents or adopting the built-in pipeline workers
//  3. Submitting requests with Run()
//
// The façade delegates planning to package planner and dispatch to package
// executor while keeping setup ergonomics concise. All defaults are safe for
// local development and testing.
package taskmesh

import (
	"context"

	"github.com/taskmesh/taskmesh/agent"
	"github.com/taskmesh/taskmesh/config"
	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/logging"
	"github.com/taskmesh/taskmesh/model"
	"github.com/taskmesh/taskmesh/orchestrator"
)

// Options configures the TaskMesh instance.
type Options struct {
	// Config supplies mode, timeouts, catalog and routing rules. Nil
	// means the built-in defaults.
	Config *config.Config
	// ConfigPath loads the configuration from YAML when Config is nil.
	// Load failures degrade to defaults; the error is logged, not fatal.
	ConfigPath string
	// Model backs advisory planning and the synthesis worker.
	Model model.Model
	// Approver gates execution when the configuration requires approval.
	Approver orchestrator.Approver
	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// TaskMesh is the high-level façade aggregating registry, configuration and
// orchestration.
type TaskMesh struct {
	cfg          *config.Config
	registry     *agent.Registry
	orchestrator *orchestrator.Orchestrator
	logger       logging.Logger
}

// New creates a TaskMesh instance with optional overrides. Descriptors from
// the configuration catalog are pre-registered so planners can reason about
// agents before factories exist; Run still requires a factory for every
// agent a plan references.
func New(optFns ...func(o *Options)) *TaskMesh {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	cfg := opts.Config
	if cfg == nil {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			opts.Logger.Warn("configuration load failed, using defaults", "error", err)
		}
		cfg = loaded
	}

	registry := agent.NewRegistry()
	for _, desc := range cfg.Agents {
		registry.Describe(desc)
	}

	tm := &TaskMesh{
		cfg:      cfg,
		registry: registry,
		logger:   opts.Logger,
	}
	tm.orchestrator = orchestrator.New(registry, func(oo *orchestrator.Options) {
		oo.Config = cfg
		oo.Model = opts.Model
		oo.Approver = opts.Approver
		oo.Logger = opts.Logger
	})
	return tm
}

// RegisterAgent binds an agent factory, keeping any catalog descriptor
// already known for the id.
func (tm *TaskMesh) RegisterAgent(id string, factory func() core.Agent) {
	tm.registry.Register(id, agent.Factory(factory))
}

// RegisterAgentWithDescriptor binds a factory together with its descriptor.
func (tm *TaskMesh) RegisterAgentWithDescriptor(desc core.AgentDescriptor, factory func() core.Agent) {
	tm.registry.RegisterWithDescriptor(desc, agent.Factory(factory))
}

// Registry exposes the underlying registry for advanced wiring.
func (tm *TaskMesh) Registry() *agent.Registry { return tm.registry }

// Config returns the effective configuration.
func (tm *TaskMesh) Config() *config.Config { return tm.cfg }

// Run plans and executes one request.
func (tm *TaskMesh) Run(ctx context.Context, req orchestrator.Request) *orchestrator.Outcome {
	return tm.orchestrator.Run(ctx, req)
}
