// Package llm provides backends for AI nodes: a deterministic mock and an
// OpenAI chat-completion client.
package llm

import (
	"context"
	"os"
)

// Request is one prompt sent to a model.
type Request struct {
	Prompt       string
	SystemPrompt string
	ModelID      string
}

// Response carries either the model text or an error message the backend
// reported without failing the call.
type Response struct {
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Client completes prompts.
type Client interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request) (Response, error)

func (f ClientFunc) Complete(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}

// FromEnv returns an OpenAI client when OPENAI_API_KEY is set and a mock
// built with opts otherwise.
func FromEnv(opts ...MockOption) Client {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return NewOpenAIClient(key)
	}
	return NewMockClient(opts...)
}
