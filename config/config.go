// Package config loads coordinator configuration from YAML with built-in
// defaults. Loading never leaves the caller without a usable configuration:
// a missing or malformed file yields the defaults plus a core.ConfigError
// describing what was ignored.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/plan"
	"github.com/taskmesh/taskmesh/planner"
	"gopkg.in/yaml.v3"
)

// EnvConfigPath, when set, overrides the path passed to Load.
const EnvConfigPath = "TASKMESH_CONFIG"

// Mode selects how plans are produced.
type Mode string

const (
	// ModeRules uses the deterministic rule engine.
	ModeRules Mode = "rules"
	// ModeAdvisory asks a language model for a proposal.
	ModeAdvisory Mode = "advisory"
)

// Duration wraps time.Duration with YAML support for strings like "30s".
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML renders the duration as a string.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config is the full coordinator configuration.
type Config struct {
	// Mode selects rule-based or advisory planning.
	Mode Mode `yaml:"mode"`
	// StepTimeout bounds one agent execution including its wait for
	// dependencies.
	StepTimeout Duration `yaml:"step_timeout"`
	// DependencyTimeout bounds how long a step waits for an upstream
	// output key before failing.
	DependencyTimeout Duration `yaml:"dependency_timeout"`
	// RequireApproval gates execution behind an approver when true.
	RequireApproval bool `yaml:"require_approval"`

	Agents    []core.AgentDescriptor      `yaml:"agents"`
	Templates map[string]planner.Template `yaml:"templates"`
	Rules     planner.RuleSet             `yaml:"rules"`
}

// Default returns the built-in configuration: the standard agent catalog,
// the three stock workflow templates and the rule set that routes between
// them.
func Default() *Config {
	return &Config{
		Mode:              ModeRules,
		StepTimeout:       Duration(60 * time.Second),
		DependencyTimeout: Duration(30 * time.Second),
		RequireApproval:   false,
		Agents: []core.AgentDescriptor{
			{
				ID:           "ingestion_agent",
				Description:  "Normalizes raw input into a structured request",
				Capabilities: []string{"normalize"},
			},
			{
				ID:           "intent_agent",
				Description:  "Classifies the request's intent and urgency",
				Capabilities: []string{"classify"},
				Dependencies: []string{"ingestion_agent"},
			},
			{
				ID:           "planner_agent",
				Description:  "Selects the workflow for the classified request",
				Capabilities: []string{"plan"},
				Dependencies: []string{"intent_agent"},
			},
			{
				ID:           "retrieval_agent",
				Description:  "Searches the knowledge base for relevant context",
				Capabilities: []string{"read", "search"},
				CostTier:     "low",
			},
			{
				ID:           "memory_agent",
				Description:  "Recalls prior interactions with the requester",
				Capabilities: []string{"read"},
				CostTier:     "low",
			},
			{
				ID:           "reasoning_agent",
				Description:  "Analyzes gathered context and drafts a resolution",
				Capabilities: []string{"analyze"},
				CostTier:     "high",
			},
			{
				ID:           "response_synthesis",
				Description:  "Writes the final response from the analysis",
				Capabilities: []string{"generate"},
				CostTier:     "medium",
			},
			{
				ID:           "guardrails_agent",
				Description:  "Checks the response for policy compliance",
				Capabilities: []string{"validate"},
				CostTier:     "low",
			},
		},
		Templates: map[string]planner.Template{
			"customer_support_ticket": {
				Description:   "Standard support ticket resolution",
				TypicalAgents: []string{"retrieval_agent", "reasoning_agent", "response_synthesis", "guardrails_agent"},
				Keywords:      []string{"ticket", "support", "help"},
			},
			"incident_response": {
				Description:   "Urgent incident triage with concurrent context gathering",
				TypicalAgents: []string{"retrieval_agent", "memory_agent", "reasoning_agent", "response_synthesis"},
				Keywords:      []string{"outage", "incident", "down", "urgent"},
			},
			"knowledge_query": {
				Description:   "Answer a question from the knowledge base",
				TypicalAgents: []string{"retrieval_agent", "response_synthesis"},
				Keywords:      []string{"question", "how", "what", "docs"},
			},
		},
		Rules: planner.RuleSet{
			Rules: []planner.Rule{
				{
					Priority: 1,
					Field:    "urgency_level",
					Operator: planner.OpEqual,
					Value:    "critical",
					Template: "incident_response",
					Strategy: plan.StrategyParallel,
				},
				{
					Priority: 2,
					Field:    "sla_risk_score",
					Operator: planner.OpGreater,
					Value:    0.8,
					Template: "incident_response",
					Strategy: plan.StrategyParallel,
				},
				{
					Priority: 3,
					Field:    "primary_intent",
					Operator: planner.OpIn,
					Value:    []any{"question", "how_to"},
					Template: "knowledge_query",
					Strategy: plan.StrategySerial,
				},
			},
			DefaultTemplate: "customer_support_ticket",
			DefaultStrategy: plan.StrategySerial,
		},
	}
}

// Load reads the configuration at path, with the TASKMESH_CONFIG environment
// variable taking precedence over the argument. The returned Config is
// always usable: when the file is absent, unreadable or malformed, Load
// returns the defaults together with a core.ConfigError explaining what was
// ignored. An empty path with no environment override returns the defaults
// silently.
func Load(path string) (*Config, error) {
	cfg := Default()

	if env := os.Getenv(EnvConfigPath); env != "" {
		path = env
	}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, &core.ConfigError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return Default(), &core.ConfigError{Path: path, Err: err}
	}
	if err := cfg.validate(); err != nil {
		return Default(), &core.ConfigError{Path: path, Err: err}
	}
	return cfg, nil
}

// validate rejects configurations that would break planning later.
func (c *Config) validate() error {
	if c.Mode != ModeRules && c.Mode != ModeAdvisory {
		return &core.ValidationError{Field: "mode", Reason: fmt.Sprintf("unknown mode %q", c.Mode)}
	}
	if c.Rules.DefaultTemplate != "" {
		if _, ok := c.Templates[c.Rules.DefaultTemplate]; !ok {
			return &core.ValidationError{Field: "rules.default_template", Reason: fmt.Sprintf("template %q not defined", c.Rules.DefaultTemplate)}
		}
	}
	for _, rule := range c.Rules.Rules {
		if _, ok := c.Templates[rule.Template]; !ok {
			return &core.ValidationError{Field: "rules", Reason: fmt.Sprintf("rule priority %d references undefined template %q", rule.Priority, rule.Template)}
		}
	}
	return nil
}
