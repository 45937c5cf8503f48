package worker

import (
	"fmt"
	"strings"

	"github.com/taskmesh/taskmesh/core"
	"github.com/taskmesh/taskmesh/model"
)

// SynthesisWorker drafts the final response from whatever upstream context
// exists in the state store, using a language model for the wording.
type SynthesisWorker struct {
	model       model.Model
	contextKeys []string
	maxTokens   int64
}

// SynthesisOptions holds configuration overrides for NewSynthesisWorker.
type SynthesisOptions struct {
	// ContextKeys are the state keys folded into the prompt when present.
	ContextKeys []string
	MaxTokens   int64
}

// NewSynthesisWorker constructs a SynthesisWorker around m.
func NewSynthesisWorker(m model.Model, optFns ...func(o *SynthesisOptions)) *SynthesisWorker {
	opts := SynthesisOptions{
		ContextKeys: []string{
			core.OutputKey("reasoning_agent"),
			core.OutputKey("retrieval_agent"),
			core.OutputKey("memory_agent"),
		},
		MaxTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &SynthesisWorker{
		model:       m,
		contextKeys: opts.ContextKeys,
		maxTokens:   opts.MaxTokens,
	}
}

// ID returns the agent identifier.
func (w *SynthesisWorker) ID() string { return "response_synthesis" }

// Description returns the human-readable purpose of this agent.
func (w *SynthesisWorker) Description() string {
	return "Writes the final response from the analysis"
}

// Dependencies returns nil; the plan supplies the edges.
func (w *SynthesisWorker) Dependencies() []string { return nil }

// Execute folds the available context into a prompt, calls the model and
// returns the wording under final_response.
func (w *SynthesisWorker) Execute(rc *core.RunContext) (map[string]any, error) {
	var sb strings.Builder
	sb.WriteString("Write a clear, helpful response for the request below.\n")

	if input, ok := rc.State.Get("user_input"); ok {
		sb.WriteString(fmt.Sprintf("\nRequest: %v\n", input))
	}
	for _, key := range w.contextKeys {
		if v, ok := rc.State.Get(key); ok {
			sb.WriteString(fmt.Sprintf("\nContext (%s): %v\n", key, v))
		}
	}

	text, err := w.model.Generate(rc.Context, model.Request{
		Prompt:    sb.String(),
		MaxTokens: w.maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesize response: %w", err)
	}
	return map[string]any{
		"final_response": text,
		"model":          w.model.Info().Name,
	}, nil
}
