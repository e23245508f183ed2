package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"google.golang.org/genai"
)

const providerGemini = "gemini"

// Gemini wraps a shared Google GenAI client. One client serves every model
// the assistant uses.
type Gemini struct {
	client *genai.Client
}

// NewGemini creates a Gemini API client
func NewGemini(ctx context.Context, apiKey string, httpClient *http.Client) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Gemini{client: client}, nil
}

// Generator returns a text generator bound to model
func (g *Gemini) Generator(model string) *GeminiGenerator {
	return &GeminiGenerator{client: g.client, model: model}
}

// Embedder returns an embedding engine bound to model
func (g *Gemini) Embedder(model string) *GeminiEmbedder {
	return &GeminiEmbedder{client: g.client, model: model}
}

// GeminiGenerator generates text with a single Gemini model
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// Generate sends one prompt and returns the concatenated text parts
func (g *GeminiGenerator) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	cfg := &genai.GenerateContentConfig{
		MaxOutputTokens: params.MaxOutputTokens,
	}
	if params.Temperature > 0 {
		cfg.Temperature = genai.Ptr(params.Temperature)
	}
	if params.TopP > 0 {
		cfg.TopP = genai.Ptr(params.TopP)
	}
	if params.TopK > 0 {
		cfg.TopK = genai.Ptr(params.TopK)
	}
	if params.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", classifyGenAIError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &Error{Provider: providerGemini, Kind: KindBadResponse, Err: fmt.Errorf("model %s returned no text", g.model)}
	}
	return text, nil
}

// GeminiEmbedder generates retrieval embeddings
type GeminiEmbedder struct {
	client *genai.Client
	model  string
}

// Embed generates an embedding for a single text
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	result, err := e.client.Models.EmbedContent(ctx,
		e.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)},
		&genai.EmbedContentConfig{TaskType: "RETRIEVAL_QUERY"},
	)
	if err != nil {
		return nil, classifyGenAIError(err)
	}

	if len(result.Embeddings) == 0 || len(result.Embeddings[0].Values) == 0 {
		return nil, &Error{Provider: providerGemini, Kind: KindBadResponse, Err: errors.New("no embeddings returned")}
	}

	return result.Embeddings[0].Values, nil
}

// Name returns the engine name
func (e *GeminiEmbedder) Name() string {
	return "genai:" + e.model
}

func classifyGenAIError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &Error{Provider: providerGemini, Kind: kindForStatus(apiErr.Code), StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &Error{Provider: providerGemini, Kind: kindForStatus(apiErrPtr.Code), StatusCode: apiErrPtr.Code, Err: err}
	}
	return wrap(providerGemini, err)
}
