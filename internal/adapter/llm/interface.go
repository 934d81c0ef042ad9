// Package llm provides clients for the hosted language model used by the
// query and impact analysis agents.
package llm

import "context"

// Client defines the interface for LLM API operations.
type Client interface {
	// CreateChatCompletion sends a chat completion request (non-streaming).
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)

	// ListModels retrieves the list of available models.
	ListModels(ctx context.Context) ([]Model, error)
}

// Ensure HTTPClient implements Client interface.
var _ Client = (*HTTPClient)(nil)
