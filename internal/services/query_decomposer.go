package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"healthbot/internal/llm"
	"healthbot/internal/models"
)

// decomposerParams keeps the analysis focused and short
var decomposerParams = llm.GenerationParams{
	Temperature:     0.3,
	TopP:            0.8,
	TopK:            20,
	MaxOutputTokens: 1024,
	JSON:            true,
}

const decomposerPromptTemplate = `Analyze the following health-related query and:
1. Determine if we need to search for scientific research (yes/no)
2. Decompose into 3-4 specific sub-queries if research is needed

Query: %s

Provide response in the following JSON format:
{
    "needs_research": true/false,
    "sub_queries": [
        "What is [topic] and its basic mechanisms?",
        "What are the proven benefits of [topic]?",
        "What are the potential risks and side effects of [topic]?",
        "What does recent scientific research say about [topic]'s safety?"
    ]
}

If research is not needed, return empty sub_queries list.`

// QueryDecomposer decides whether a message needs external research and
// splits it into focused sub-queries
type QueryDecomposer struct {
	generator     llm.Generator
	maxSubQueries int
	timeout       time.Duration
}

// NewQueryDecomposer creates a decomposer. A nil generator always yields the
// no-research result.
func NewQueryDecomposer(generator llm.Generator, maxSubQueries int, timeout time.Duration) *QueryDecomposer {
	return &QueryDecomposer{
		generator:     generator,
		maxSubQueries: maxSubQueries,
		timeout:       timeout,
	}
}

// Decompose never fails: model errors and unparsable output produce the
// no-research result tagged with the failure kind
func (d *QueryDecomposer) Decompose(ctx context.Context, query string) models.DecompositionResult {
	if d.generator == nil {
		return models.NoResearch(models.FailureUpstream)
	}

	callCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	raw, err := d.generator.Generate(callCtx, fmt.Sprintf(decomposerPromptTemplate, query), decomposerParams)
	if err != nil {
		log.Printf("⚠️  [DECOMPOSER] Model call failed: %v", err)
		return models.NoResearch(failureFor(err))
	}

	result, err := parseDecomposition(raw, d.maxSubQueries)
	if err != nil {
		log.Printf("⚠️  [DECOMPOSER] Unparsable output (%d chars): %v", len(raw), err)
		return models.NoResearch(models.FailureParse)
	}

	log.Printf("🔍 [DECOMPOSER] needs_research=%v sub_queries=%d", result.NeedsResearch, len(result.SubQueries))
	return result
}

// parseDecomposition extracts the JSON object from model output and
// normalizes its sub-queries
func parseDecomposition(raw string, maxSubQueries int) (models.DecompositionResult, error) {
	jsonStr := extractJSONFromLLM(raw)
	if jsonStr == "" {
		return models.DecompositionResult{}, fmt.Errorf("no JSON object found")
	}

	var parsed struct {
		NeedsResearch json.RawMessage `json:"needs_research"`
		SubQueries    []string        `json:"sub_queries"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &parsed); err != nil {
		return models.DecompositionResult{}, fmt.Errorf("invalid JSON: %w", err)
	}

	needsResearch, err := parseFlag(parsed.NeedsResearch)
	if err != nil {
		return models.DecompositionResult{}, err
	}
	if !needsResearch {
		return models.DecompositionResult{NeedsResearch: false, SubQueries: []string{}}, nil
	}

	subQueries := make([]string, 0, len(parsed.SubQueries))
	seen := make(map[string]bool)
	for _, q := range parsed.SubQueries {
		q = strings.TrimSpace(q)
		key := strings.ToLower(q)
		if q == "" || seen[key] {
			continue
		}
		seen[key] = true
		subQueries = append(subQueries, q)
		if len(subQueries) == maxSubQueries {
			break
		}
	}

	return models.DecompositionResult{NeedsResearch: true, SubQueries: subQueries}, nil
}

// parseFlag accepts a JSON boolean or a yes/no/true/false string
func parseFlag(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, fmt.Errorf("needs_research is missing")
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "yes":
			return true, nil
		case "false", "no":
			return false, nil
		}
	}
	return false, fmt.Errorf("needs_research has unexpected value %s", string(raw))
}

// extractJSONFromLLM pulls a JSON object out of model output that may be
// wrapped in a markdown fence or surrounded by prose
func extractJSONFromLLM(s string) string {
	if idx := strings.Index(s, "```json"); idx >= 0 {
		start := idx + 7
		end := strings.Index(s[start:], "```")
		if end >= 0 {
			return strings.TrimSpace(s[start : start+end])
		}
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		start := idx + 3
		if nlIdx := strings.Index(s[start:], "\n"); nlIdx >= 0 {
			start += nlIdx + 1
		}
		end := strings.Index(s[start:], "```")
		if end >= 0 {
			candidate := strings.TrimSpace(s[start : start+end])
			if strings.HasPrefix(candidate, "{") {
				return candidate
			}
		}
	}

	if idx := strings.Index(s, "{"); idx >= 0 {
		depth := 0
		inString := false
		for i := idx; i < len(s); i++ {
			switch s[i] {
			case '\\':
				if inString {
					i++
				}
			case '"':
				inString = !inString
			case '{':
				if !inString {
					depth++
				}
			case '}':
				if !inString {
					depth--
					if depth == 0 {
						return s[idx : i+1]
					}
				}
			}
		}
	}

	return ""
}
