package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"healthbot/internal/models"
)

func TestResponseComposer_ExtractsFinalBlock(t *testing.T) {
	gen := &fakeGenerator{output: "Step 1: think about it.\nStep 2: more thinking.\n" +
		"FINAL RESPONSE:\nAnswer: Drink water.\nProfessional Advice: See a doctor if dizzy."}
	c := NewResponseComposer(gen, time.Second)

	got := c.Compose(context.Background(), models.ComposeRequest{Query: "How much water?"})

	assert.False(t, got.Fallback())
	assert.Equal(t, "Answer: Drink water.\nProfessional Advice: See a doctor if dizzy.", got.Text)
	assert.NotContains(t, got.Text, "Step 1")
}

func TestResponseComposer_UsesLastMarkerCaseInsensitive(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   string
	}{
		{"mixed case", "I will end with Final Answer: later.\nfinal answer:\nAnswer: Rest.", "Answer: Rest."},
		{"runes that grow when lowercased", "Düşünce: İİİİİİ ADIMLAR\nFINAL RESPONSE:\nAnswer: Melatonin is generally safe short term.",
			"Answer: Melatonin is generally safe short term."},
		{"runes that shrink when lowercased", "Temperature 300\u212a noted.\u212a\u212a\u212a\nFinal Answer: Answer: Stay cool.", "Answer: Stay cool."},
		{"non-ASCII answer", "Reasoning.\nFINAL RESPONSE: Answer: Trinken Sie täglich Wasser, İyi günler.", "Answer: Trinken Sie täglich Wasser, İyi günler."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{output: tt.output}
			got := NewResponseComposer(gen, time.Second).Compose(context.Background(), models.ComposeRequest{Query: "q"})
			assert.Equal(t, tt.want, got.Text)
		})
	}
}

func TestResponseComposer_NoMarkerReturnsTrimmedOutput(t *testing.T) {
	gen := &fakeGenerator{output: "\n  Answer: Sleep 8 hours.  \n"}
	got := NewResponseComposer(gen, time.Second).Compose(context.Background(), models.ComposeRequest{Query: "q"})
	assert.Equal(t, "Answer: Sleep 8 hours.", got.Text)
}

func TestResponseComposer_AppendsSafetyWarningWhenResearchUsed(t *testing.T) {
	gen := &fakeGenerator{output: "FINAL RESPONSE: Answer: Melatonin is generally safe short-term."}
	c := NewResponseComposer(gen, time.Second)

	got := c.Compose(context.Background(), models.ComposeRequest{
		Query:      "Is melatonin safe?",
		SubQueries: []string{"q1"},
		Findings:   models.ResearchFindings{"q1": "findings"},
	})

	assert.True(t, strings.HasPrefix(got.Text, "Answer: Melatonin is generally safe short-term."))
	assert.Contains(t, got.Text, "Safety Warning: "+models.SafetyWarning)
}

func TestResponseComposer_KeepsModelSafetyWarning(t *testing.T) {
	gen := &fakeGenerator{output: "Answer: Yes.\nSafety Warning: Avoid with alcohol."}
	got := NewResponseComposer(gen, time.Second).Compose(context.Background(), models.ComposeRequest{
		Query:    "q",
		Findings: models.ResearchFindings{"q1": "f"},
	})
	assert.Equal(t, 1, strings.Count(got.Text, "Safety Warning:"))
}

func TestResponseComposer_FailureReturnsDefault(t *testing.T) {
	tests := []struct {
		name string
		gen  *fakeGenerator
		want models.FailureKind
	}{
		{"upstream", &fakeGenerator{err: errUpstream}, models.FailureUpstream},
		{"blank", &fakeGenerator{output: "   "}, models.FailureParse},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewResponseComposer(tt.gen, time.Second).Compose(context.Background(), models.ComposeRequest{Query: "q"})
			assert.Equal(t, models.DefaultResponse, got.Text)
			assert.Equal(t, tt.want, got.Failure)
		})
	}
}

func TestBuildComposerPrompt(t *testing.T) {
	prompt := buildComposerPrompt(models.ComposeRequest{
		Query:      "Is melatonin safe?",
		SubQueries: []string{"What is melatonin?"},
		Findings:   models.ResearchFindings{"What is melatonin?": "A hormone."},
		Context: models.RetrievedContext{Snippets: []models.Snippet{
			{Kind: models.SnippetTip, Source: "sleep", Text: "Sleep well."},
		}},
		History: []models.Turn{
			{Role: models.RoleUser, Content: "hello"},
			{Role: models.RoleAssistant, Content: "hi there"},
		},
	})

	assert.Contains(t, prompt, "Original Query: Is melatonin safe?")
	assert.Contains(t, prompt, "Local Knowledge Context:\nHealth Tip: Sleep well.")
	assert.Contains(t, prompt, "Research for 'What is melatonin?':\nA hormone.")
	assert.Contains(t, prompt, "User: hello\nAssistant: hi there")
	assert.Contains(t, prompt, FinalResponseMarker)
}

func TestBuildComposerPrompt_OmitsEmptySections(t *testing.T) {
	prompt := buildComposerPrompt(models.ComposeRequest{Query: "hi"})

	assert.NotContains(t, prompt, "Local Knowledge Context:")
	assert.NotContains(t, prompt, "Research Findings:")
	assert.NotContains(t, prompt, "Previous Conversation:")
}
