package llm

import (
	"context"
	"errors"
)

// Sentinel errors for provider adapters.
var (
	// ErrNoAPIKey is returned when an adapter is constructed without
	// credentials.
	ErrNoAPIKey = errors.New("llm: api key is required")

	// ErrEmptyCompletion is returned when the provider answers with no
	// choices.
	ErrEmptyCompletion = errors.New("llm: completion returned no choices")
)

// Embedder turns texts into vectors.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Ordering: vectors[i] corresponds to texts[i].
// - Errors: any failure is returned as-is so resilience layers can
//   classify it.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// GenerationRequest is one completion call.
type GenerationRequest struct {
	// System primes the model's role. Empty omits the system message.
	System string
	// Prompt is the user-turn content.
	Prompt string
	// MaxTokens caps the completion length. Zero uses the provider
	// default.
	MaxTokens int
	// Temperature controls sampling. Zero uses the provider default.
	Temperature float32
}

// Usage reports token accounting for one generation.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// GenerationResult is the provider's answer.
type GenerationResult struct {
	Content string
	Usage   Usage
}

// Generator produces text completions.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}
