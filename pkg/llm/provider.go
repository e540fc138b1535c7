// Package llm provides abstractions for LLM provider integration.
//
// Providers handle API communication with LLM services and return simple
// StreamChunk instances. The agent layer converts chunks into response
// stream events; this separation keeps providers reusable outside the
// agent pipeline (the completion engine uses one directly).
package llm

import (
	"context"

	"github.com/aegish/aegish/pkg/types"
)

// StreamChunk is one increment of a streamed completion.
type StreamChunk struct {
	// Role is set on the first chunk of a response, e.g. "assistant".
	Role string

	// Content is the text delta for this chunk.
	Content string

	// Finished is true on the final chunk of a successful stream.
	Finished bool

	// Error is set when the stream failed mid-flight.
	Error error
}

// IsError returns true if this chunk carries a stream error.
func (c *StreamChunk) IsError() bool {
	return c.Error != nil
}

// Provider defines the interface for LLM integrations.
type Provider interface {
	// StreamCompletion sends messages to the LLM and streams back response chunks.
	//
	// The returned channel emits StreamChunk instances: the first chunk
	// typically has Role set, subsequent chunks carry Content deltas, and the
	// final chunk has Finished=true. Stream-time errors arrive as chunks with
	// Error set. The channel is closed when streaming completes or fails;
	// callers should read until it is closed.
	//
	// Returns an error only if streaming cannot be initiated.
	StreamCompletion(ctx context.Context, messages []*types.Message) (<-chan *StreamChunk, error)

	// Complete sends messages to the LLM and returns the full response.
	// Convenience wrapper around StreamCompletion for non-streaming callers.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModelInfo returns information about the model being used.
	GetModelInfo() *types.ModelInfo

	// GetModel returns the model name being used.
	GetModel() string

	// GetBaseURL returns the base URL used for API requests.
	GetBaseURL() string

	// GetAPIKey returns the API key used for authentication.
	GetAPIKey() string
}
