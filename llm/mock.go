package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// DefaultMockLatency is the simulated round trip of MockClient.
const DefaultMockLatency = 500 * time.Millisecond

// MockClient answers every prompt locally. A prompt containing "error" in any
// case yields an error response.
type MockClient struct {
	latency time.Duration
}

// MockOption configures a MockClient.
type MockOption func(*MockClient)

// WithLatency overrides the simulated latency. Zero answers immediately.
func WithLatency(d time.Duration) MockOption {
	return func(m *MockClient) {
		if d >= 0 {
			m.latency = d
		}
	}
}

func NewMockClient(opts ...MockOption) *MockClient {
	m := &MockClient{latency: DefaultMockLatency}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MockClient) Complete(ctx context.Context, req Request) (Response, error) {
	if m.latency > 0 {
		timer := time.NewTimer(m.latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case <-timer.C:
		}
	}

	if strings.Contains(strings.ToLower(req.Prompt), "error") {
		return Response{Error: "This is a mock error from AI."}, nil
	}
	return Response{
		Response: fmt.Sprintf("Mock AI Response for prompt: %q (System: %s, Model: %s)",
			req.Prompt, orDefault(req.SystemPrompt), orDefault(req.ModelID)),
	}, nil
}

func orDefault(s string) string {
	if s == "" {
		return "default"
	}
	return s
}
