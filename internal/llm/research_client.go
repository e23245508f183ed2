package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const providerResearch = "research"

// ResearchSystemPrompt steers the search model towards evidence and safety
const ResearchSystemPrompt = `You are a medical research assistant. Search and summarize recent, reliable research papers and medical data.
Focus on:
1. Scientific evidence and clinical studies
2. Potential health risks and safety concerns
3. Expert medical opinions
4. Recent research findings

Format your response to include:
- Key findings
- Safety warnings
- Scientific consensus
- References to studies (if available)`

// ResearchClient calls an OpenAI-compatible chat completions endpoint backed
// by an online search model
type ResearchClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewResearchClient creates a research client. baseURL must not end in a slash.
func NewResearchClient(baseURL, apiKey, model string) *ResearchClient {
	return &ResearchClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// SummarizeQuery searches for research on query and returns the summary text
func (c *ResearchClient) SummarizeQuery(ctx context.Context, query string) (string, error) {
	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]interface{}{
			{"role": "system", "content": ResearchSystemPrompt},
			{"role": "user", "content": "Search for recent scientific research about: " + query},
		},
		"temperature": 0.3,
		"max_tokens":  1024,
		"stream":      false,
	}

	reqJSON, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewBuffer(reqJSON))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", wrap(providerResearch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", &Error{
			Provider:   providerResearch,
			Kind:       kindForStatus(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API error: %s", strings.TrimSpace(string(body))),
		}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		if isTimeout(err) {
			return "", wrap(providerResearch, err)
		}
		return "", &Error{Provider: providerResearch, Kind: KindBadResponse, Err: fmt.Errorf("failed to decode response: %w", err)}
	}

	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", &Error{Provider: providerResearch, Kind: KindBadResponse, Err: fmt.Errorf("no choices in response")}
	}

	return result.Choices[0].Message.Content, nil
}
