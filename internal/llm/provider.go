package llm

import (
	"context"
)

// Provider defines the model boundary: one complete JSON-shaped answer, or an
// ordered sequence of text deltas. The core does not control or validate
// model correctness beyond structural JSON parsing downstream.
type Provider interface {
	// Name returns the provider name
	Name() string

	// Complete performs a single blocking completion
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)

	// Stream starts a streaming completion; the returned Stream yields text
	// deltas until io.EOF
	Stream(ctx context.Context, req CompletionRequest) (Stream, error)

	// IsAvailable checks if the provider is properly configured and accessible
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest contains the input for a model call
type CompletionRequest struct {
	// System is the system prompt framing the task
	System string

	// User is the user-role prompt carrying the text to analyze
	User string

	// Model overrides the configured model when non-empty
	Model string

	// MaxTokens limits the response length (0 uses the configured default)
	MaxTokens int
}

// Completion is the complete response of a blocking model call
type Completion struct {
	// ID is the upstream completion identifier
	ID string

	// Content is the full response text
	Content string

	// TokensUsed tracks token consumption
	TokensUsed int
}

// Delta is one incremental fragment of a streaming completion. Fragments
// carry no boundary alignment to structural units.
type Delta struct {
	// ID is the upstream identifier of the stream producing this fragment
	ID string

	// Content is the text fragment, possibly empty
	Content string
}

// Stream is an open streaming completion. Recv returns io.EOF when the
// upstream generator is exhausted. Close releases the connection and must be
// safe to call after Recv has returned an error.
type Stream interface {
	Recv() (Delta, error)
	Close() error
}

// Config holds model provider configuration
type Config struct {
	// Provider name: "openai", "anthropic", "ollama", ""
	Provider string

	// Model name (provider-specific)
	Model string

	// APIKey for OpenAI/Anthropic
	APIKey string

	// BaseURL for custom endpoints (e.g., Ollama)
	BaseURL string

	// Timeout for blocking API requests, in seconds
	Timeout int

	// MaxTokens for response generation
	MaxTokens int

	// RequestsPerSecond throttles outbound calls toward the provider
	RequestsPerSecond float64

	// Burst allows short bursts above the sustained outbound rate
	Burst int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Provider:          "",
		Model:             "",
		Timeout:           30,
		MaxTokens:         2000,
		RequestsPerSecond: 2,
		Burst:             5,
	}
}
