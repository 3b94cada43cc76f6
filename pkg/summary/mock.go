package summary

import (
	"context"
	"sync"
)

// Mock implements Summarizer for testing.
type Mock struct {
	// SummarizeFunc is called when Summarize is invoked.
	SummarizeFunc func(ctx context.Context, req Request) (*Summary, error)

	mu    sync.Mutex
	calls []Request
}

// NewMock creates a mock returning a fixed summary.
func NewMock() *Mock {
	return &Mock{
		SummarizeFunc: func(ctx context.Context, req Request) (*Summary, error) {
			return &Summary{
				ProfileSummary:  "Mock client profile",
				IdentifiedNeeds: []string{"life cover"},
				NextSteps:       []string{"send quote"},
			}, nil
		},
	}
}

// Summarize implements Summarizer.
func (m *Mock) Summarize(ctx context.Context, req Request) (*Summary, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	fn := m.SummarizeFunc
	m.mu.Unlock()

	if err := req.Validate(); err != nil {
		return nil, err
	}
	return fn(ctx, req)
}

// Calls returns the recorded requests.
func (m *Mock) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.calls...)
}

var _ Summarizer = (*Mock)(nil)
