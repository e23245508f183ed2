package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"healthbot/internal/database"
	"healthbot/internal/llm"
	"healthbot/internal/models"
)

// fakeGenerator returns canned output or runs a custom function
type fakeGenerator struct {
	output string
	err    error
	fn     func(ctx context.Context, prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
	params  []llm.GenerationParams
}

func (g *fakeGenerator) Generate(ctx context.Context, prompt string, params llm.GenerationParams) (string, error) {
	g.mu.Lock()
	g.prompts = append(g.prompts, prompt)
	g.params = append(g.params, params)
	g.mu.Unlock()

	if g.fn != nil {
		return g.fn(ctx, prompt)
	}
	return g.output, g.err
}

func (g *fakeGenerator) lastPrompt() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.prompts) == 0 {
		return ""
	}
	return g.prompts[len(g.prompts)-1]
}

// fakeSearcher answers per query; unknown queries get a generic summary
type fakeSearcher struct {
	answers map[string]string
	errs    map[string]error
	delays  map[string]time.Duration
	calls   atomic.Int32
}

func (s *fakeSearcher) SummarizeQuery(ctx context.Context, query string) (string, error) {
	s.calls.Add(1)

	if d, ok := s.delays[query]; ok {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return "", &llm.Error{Provider: "fake", Kind: llm.KindTimeout, Err: ctx.Err()}
		}
	}
	if err, ok := s.errs[query]; ok {
		return "", err
	}
	if ans, ok := s.answers[query]; ok {
		return ans, nil
	}
	return "Findings for " + query, nil
}

// fakeEmbedder maps texts onto fixed vectors by keyword
type fakeEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   atomic.Int32
}

func (e *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls.Add(1)
	if e.err != nil {
		return nil, e.err
	}
	lower := strings.ToLower(text)
	for keyword, vec := range e.vectors {
		if strings.Contains(lower, keyword) {
			return vec, nil
		}
	}
	return []float32{0, 0, 1}, nil
}

func (e *fakeEmbedder) Name() string { return "fake" }

// fakeKnowledge serves fixed matches per collection
type fakeKnowledge struct {
	matches map[string][]models.Match
	err     error
	calls   atomic.Int32
}

func (k *fakeKnowledge) SimilarityQuery(_ context.Context, collection, _ string, limit int, _ map[string]string) ([]models.Match, error) {
	k.calls.Add(1)
	if k.err != nil {
		return nil, k.err
	}
	out := k.matches[collection]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (k *fakeKnowledge) List(_ context.Context, collection string, filter map[string]string) ([]models.Match, error) {
	if k.err != nil {
		return nil, k.err
	}
	var out []models.Match
	for _, m := range k.matches[collection] {
		if matchesFilter(m, filter) {
			out = append(out, m)
		}
	}
	return out, nil
}

// fakeRecorder collects recorded transcripts
type fakeRecorder struct {
	mu          sync.Mutex
	transcripts []models.ChatTranscript
}

func (r *fakeRecorder) RecordChat(_ context.Context, t models.ChatTranscript) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.transcripts = append(r.transcripts, t)
	return nil
}

func (r *fakeRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.transcripts)
}

var errUpstream = &llm.Error{Provider: "fake", Kind: llm.KindUnavailable, StatusCode: 503, Err: errors.New("service unavailable")}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	require.NoError(t, db.Initialize())
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T, embedder llm.Embedder) *KnowledgeStore {
	t.Helper()
	return NewKnowledgeStore(newTestDB(t), embedder)
}

func tipMatch(id, text, category string) models.Match {
	return models.Match{ID: id, Document: text, Metadata: map[string]any{"category": category}}
}

func productMatch(id, name, description, category string, price float64) models.Match {
	return models.Match{ID: id, Document: description, Metadata: map[string]any{"name": name, "category": category, "price": price}}
}
