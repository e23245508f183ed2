// Package llm holds the clients for the hosted services the assistant
// depends on: text generation, embeddings and research search.
package llm

import "context"

// GenerationParams tunes a single generation request
type GenerationParams struct {
	Temperature     float32
	TopP            float32
	TopK            float32
	MaxOutputTokens int32
	JSON            bool // ask the model for an application/json response
}

// Generator produces text from a prompt
type Generator interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}

// Embedder turns text into a vector for similarity search
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Name() string
}

// Searcher runs one research lookup and returns a findings summary
type Searcher interface {
	SummarizeQuery(ctx context.Context, query string) (string, error)
}
