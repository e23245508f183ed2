package models

import (
	"sort"
	"strings"
	"time"
)

// Role identifies who authored a conversation turn
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// DefaultResponse is returned whenever the pipeline cannot produce an answer
const DefaultResponse = "I apologize, but I'm having trouble processing your request. Please try again. " +
	"For your safety, please consult a healthcare professional for accurate advice."

// SafetyWarning is the standard warning appended to research-backed answers
const SafetyWarning = "For your safety, please consult a healthcare professional for accurate advice."

// Turn is one immutable message in a user's conversation
type Turn struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// NewTurn creates a turn stamped with the current time
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content, Timestamp: time.Now().UTC()}
}

// FailureKind tags why a pipeline stage fell back. The zero value means success.
type FailureKind string

const (
	FailureNone     FailureKind = ""
	FailureTimeout  FailureKind = "timeout"
	FailureUpstream FailureKind = "upstream"
	FailureParse    FailureKind = "parse"
	FailureStore    FailureKind = "store"
	FailureInternal FailureKind = "internal"
)

// DecompositionResult is the outcome of analysing a raw user query
type DecompositionResult struct {
	NeedsResearch bool        `json:"needs_research"`
	SubQueries    []string    `json:"sub_queries"`
	Failure       FailureKind `json:"-"`
}

// NoResearch is the fail-safe decomposition used when analysis is unavailable
func NoResearch(kind FailureKind) DecompositionResult {
	return DecompositionResult{NeedsResearch: false, SubQueries: []string{}, Failure: kind}
}

// ShouldResearch reports whether the research fan-out should run
func (d DecompositionResult) ShouldResearch() bool {
	return d.NeedsResearch && len(d.SubQueries) > 0
}

// ResearchFindings maps each issued sub-query to its findings text or an
// error placeholder for that sub-query
type ResearchFindings map[string]string

// Queries returns the sub-queries in lexical order so prompts are stable
func (f ResearchFindings) Queries() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// SnippetKind labels the source collection of a retrieved snippet
type SnippetKind string

const (
	SnippetTip     SnippetKind = "tip"
	SnippetProduct SnippetKind = "product"
)

// Snippet is one labeled piece of local knowledge
type Snippet struct {
	Kind   SnippetKind `json:"kind"`
	Source string      `json:"source"`
	Text   string      `json:"text"`
}

// Line renders the snippet the way it is presented to the composer
func (s Snippet) Line() string {
	if s.Kind == SnippetProduct {
		return "Product: " + s.Source + " - " + s.Text
	}
	return "Health Tip: " + s.Text
}

// RetrievedContext is the ordered set of snippets found for a query.
// Tips always precede products.
type RetrievedContext struct {
	Snippets []Snippet   `json:"snippets"`
	Failure  FailureKind `json:"-"`
}

// Text joins the snippets into the context block; empty when nothing was found
func (c RetrievedContext) Text() string {
	if len(c.Snippets) == 0 {
		return ""
	}
	lines := make([]string, len(c.Snippets))
	for i, s := range c.Snippets {
		lines[i] = s.Line()
	}
	return strings.Join(lines, "\n")
}

// ComposeRequest carries everything gathered for the final generation call
type ComposeRequest struct {
	Query      string
	SubQueries []string
	Findings   ResearchFindings
	Context    RetrievedContext
	History    []Turn
}

// ComposeResult is the final answer, or the default message with a failure tag
type ComposeResult struct {
	Text    string
	Failure FailureKind
}

// Fallback reports whether the result is the fixed default message
func (r ComposeResult) Fallback() bool {
	return r.Failure != FailureNone
}
