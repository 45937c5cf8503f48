// Package model defines the minimal language-model contract used by advisory
// planning and synthesis agents: one prompt in, raw text out. Provider
// adapters live in the subpackages anthropic and openai; MockModel backs
// tests without network access.
package model

import (
	"context"
	"sync"

	"github.com/taskmesh/taskmesh/core"
)

// Request carries one generation call. Zero-value knobs mean provider
// defaults.
type Request struct {
	Prompt      string
	MaxTokens   int64
	Temperature float64
	TopP        float64
}

// Info identifies a model for logging and catalogs.
type Info struct {
	Name     string
	Provider string
}

// Model is the provider-independent generation interface. Generate returns
// the raw completion text; callers own any parsing of structured content.
type Model interface {
	Generate(ctx context.Context, req Request) (string, error)
	Info() Info
}

// MockModel is a scripted Model for tests. Responses are returned in order;
// after they are exhausted the last one repeats. A non-nil Err is returned
// instead of any response.
type MockModel struct {
	mu        sync.Mutex
	responses []string
	next      int
	requests  []Request

	// Err, when set, fails every Generate call.
	Err error
}

// NewMockModel scripts the mock with the given responses.
func NewMockModel(responses ...string) *MockModel {
	return &MockModel{responses: responses}
}

// Generate returns the next scripted response or the injected error.
func (m *MockModel) Generate(_ context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.responses) == 0 {
		return "", &core.ValidationError{Field: "responses", Reason: "mock model has no scripted responses"}
	}
	resp := m.responses[m.next]
	if m.next < len(m.responses)-1 {
		m.next++
	}
	return resp, nil
}

// Info identifies the mock.
func (m *MockModel) Info() Info {
	return Info{Name: "mock", Provider: "test"}
}

// Requests returns a copy of every request seen so far, in call order.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}
