package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"healthbot/internal/llm"
	"healthbot/internal/models"
)

// composerParams allows a longer, more natural answer than the decomposer
var composerParams = llm.GenerationParams{
	Temperature:     0.7,
	TopP:            0.95,
	TopK:            40,
	MaxOutputTokens: 8192,
}

// FinalResponseMarker precedes the user-visible block in composer output
const FinalResponseMarker = "FINAL RESPONSE:"

var finalMarkers = []string{FinalResponseMarker, "Final Answer:"}

const safetyWarningLabel = "Safety Warning:"

// ResponseComposer merges the query, research and local context into one
// generation request and extracts the user-visible answer
type ResponseComposer struct {
	generator llm.Generator
	timeout   time.Duration
}

// NewResponseComposer creates a composer. A nil generator always falls back.
func NewResponseComposer(generator llm.Generator, timeout time.Duration) *ResponseComposer {
	return &ResponseComposer{generator: generator, timeout: timeout}
}

// Compose returns the answer text, or the default message with the failure
// kind when generation fails or produces nothing usable
func (c *ResponseComposer) Compose(ctx context.Context, req models.ComposeRequest) models.ComposeResult {
	if c.generator == nil {
		return models.ComposeResult{Text: models.DefaultResponse, Failure: models.FailureUpstream}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.generator.Generate(callCtx, buildComposerPrompt(req), composerParams)
	if err != nil {
		log.Printf("⚠️  [COMPOSER] Generation failed: %v", err)
		return models.ComposeResult{Text: models.DefaultResponse, Failure: failureFor(err)}
	}

	answer := extractFinalResponse(raw)
	if answer == "" {
		log.Printf("⚠️  [COMPOSER] Model returned no usable text")
		return models.ComposeResult{Text: models.DefaultResponse, Failure: models.FailureParse}
	}

	if len(req.Findings) > 0 && !containsFold(answer, safetyWarningLabel) {
		answer += "\n\n" + safetyWarningLabel + " " + models.SafetyWarning
	}

	log.Printf("✍️  [COMPOSER] Response generated (%d chars)", len(answer))
	return models.ComposeResult{Text: answer}
}

func buildComposerPrompt(req models.ComposeRequest) string {
	var b strings.Builder

	b.WriteString("As a health advisor, provide a comprehensive response to the following query.\n")
	b.WriteString("Use Chain of Thought reasoning internally but provide a clear, concise final response.\n\n")

	if len(req.History) > 0 {
		b.WriteString("Previous Conversation:\n")
		for _, turn := range req.History {
			speaker := "User"
			if turn.Role == models.RoleAssistant {
				speaker = "Assistant"
			}
			fmt.Fprintf(&b, "%s: %s\n", speaker, turn.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Original Query: %s\n\n", req.Query)

	if len(req.SubQueries) > 0 {
		b.WriteString("Research Questions:\n")
		for i, q := range req.SubQueries {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
		b.WriteString("\n")
	}

	if text := req.Context.Text(); text != "" {
		b.WriteString("Local Knowledge Context:\n")
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	if len(req.Findings) > 0 {
		b.WriteString("Research Findings:\n")
		for _, q := range req.Findings.Queries() {
			fmt.Fprintf(&b, "Research for '%s':\n%s\n\n", q, req.Findings[q])
		}
	}

	b.WriteString(`Think through the following steps:
1. Analyze the research findings and local knowledge
2. Identify any safety concerns or warnings
3. Consider the reliability of the information
4. Formulate a balanced response

Then provide a response that:
1. Directly answers the original query
2. Includes relevant safety warnings
3. Cites research findings when available
4. Recommends consulting healthcare professionals when appropriate

Do not show your reasoning. Write the line "` + FinalResponseMarker + `" and then only this block:
Answer: [Clear, concise response]
Safety Warning: [If applicable]
Research Note: [Key findings from research]
Professional Advice: [When to consult healthcare providers]
`)

	return b.String()
}

// extractFinalResponse keeps the text after the last final-answer marker, or
// the whole trimmed output when there is no marker or nothing follows it
func extractFinalResponse(raw string) string {
	trimmed := strings.TrimSpace(raw)

	cut := -1
	for _, marker := range finalMarkers {
		if idx := lastIndexFold(trimmed, marker); idx >= 0 {
			if end := idx + len(marker); end > cut {
				cut = end
			}
		}
	}
	if cut < 0 {
		return trimmed
	}

	if after := strings.TrimSpace(trimmed[cut:]); after != "" {
		return after
	}
	return trimmed
}

// lastIndexFold is a case-insensitive strings.LastIndex. The result is an
// offset into s, never into a case-mapped copy.
func lastIndexFold(s, marker string) int {
	for i := len(s) - len(marker); i >= 0; i-- {
		if strings.EqualFold(s[i:i+len(marker)], marker) {
			return i
		}
	}
	return -1
}

func containsFold(s, substr string) bool {
	return lastIndexFold(s, substr) >= 0
}
