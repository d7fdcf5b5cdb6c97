package mock

import (
	"context"
	"sync/atomic"

	"github.com/poiesic/seeq/ai"
	"github.com/poiesic/seeq/core"
)

// MockLabeler is a test double for ai.Labeler.
type MockLabeler struct {
	// AnalyzeFunc is called by Analyze if set.
	// If nil, returns ai.HeuristicLabels for the text.
	AnalyzeFunc func(ctx context.Context, text, filename string) (*core.Labels, error)

	callCount atomic.Int64
}

// NewMockLabeler creates a mock labeler with heuristic default behavior.
func NewMockLabeler() *MockLabeler {
	return &MockLabeler{}
}

// Analyze labels text.
func (m *MockLabeler) Analyze(ctx context.Context, text, filename string) (*core.Labels, error) {
	m.callCount.Add(1)

	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, text, filename)
	}
	return ai.HeuristicLabels(text), nil
}

// CallCount returns the number of times Analyze was called.
func (m *MockLabeler) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockLabeler) Reset() {
	m.callCount.Store(0)
	m.AnalyzeFunc = nil
}
