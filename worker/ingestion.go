// Package worker ships ready-made agents for the standard pipeline stages:
// input normalization and model-backed response synthesis. They are ordinary
// core.Agent implementations wired through the same registry as user agents.
package worker

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/taskmesh/taskmesh/core"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// IngestionWorker normalizes the raw user input into a structured payload:
// collapsed whitespace, a generated request id and an ingestion timestamp.
// It degrades instead of failing: unusable input yields a payload with an
// error marker so downstream stages can still respond.
type IngestionWorker struct {
	inputKey string
}

// IngestionOptions holds configuration overrides for NewIngestionWorker.
type IngestionOptions struct {
	// InputKey is the state key holding the raw input. Defaults to
	// "user_input".
	InputKey string
}

// NewIngestionWorker constructs an IngestionWorker with optional overrides.
func NewIngestionWorker(optFns ...func(o *IngestionOptions)) *IngestionWorker {
	opts := IngestionOptions{InputKey: "user_input"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &IngestionWorker{inputKey: opts.InputKey}
}

// ID returns the agent identifier.
func (w *IngestionWorker) ID() string { return "ingestion_agent" }

// Description returns the human-readable purpose of this agent.
func (w *IngestionWorker) Description() string {
	return "Normalizes raw input into a structured request"
}

// Dependencies returns nil; ingestion is the first stage.
func (w *IngestionWorker) Dependencies() []string { return nil }

// Execute reads the raw input from the state store and produces the
// normalized payload. The raw value may be a plain string or a map carrying
// a "text" field; anything else is reported inside the payload rather than
// as an error.
func (w *IngestionWorker) Execute(rc *core.RunContext) (map[string]any, error) {
	raw, ok := rc.State.Get(w.inputKey)
	if !ok {
		return w.degraded("no input present under " + w.inputKey), nil
	}

	text, metadata, ok := extractText(raw)
	if !ok {
		return w.degraded(fmt.Sprintf("unsupported input type %T", raw)), nil
	}

	normalized := strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
	if normalized == "" {
		return w.degraded("input is empty after normalization"), nil
	}

	payload := map[string]any{
		"request_id":  uuid.NewString(),
		"text":        normalized,
		"received_at": time.Now().UTC().Format(time.RFC3339),
	}
	for k, v := range metadata {
		payload[k] = v
	}
	return map[string]any{
		"normalized_payload": payload,
		"ingestion_status":   "ok",
	}, nil
}

// degraded reports an unusable input without failing the stage.
func (w *IngestionWorker) degraded(reason string) map[string]any {
	return map[string]any{
		"normalized_payload": nil,
		"ingestion_status":   "degraded",
		"ingestion_error":    reason,
	}
}

// extractText pulls the text plus extra metadata out of the raw input value.
func extractText(raw any) (string, map[string]any, bool) {
	switch v := raw.(type) {
	case string:
		return v, nil, true
	case map[string]any:
		text, ok := v["text"].(string)
		if !ok {
			return "", nil, false
		}
		metadata := make(map[string]any, len(v)-1)
		for k, val := range v {
			if k != "text" {
				metadata[k] = val
			}
		}
		return text, metadata, true
	}
	return "", nil, false
}
