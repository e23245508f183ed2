package services

import (
	"context"
	"errors"
	"log"
	"time"

	"golang.org/x/sync/errgroup"

	"healthbot/internal/models"
)

// KnowledgeSearcher is the similarity-search side of the knowledge store
type KnowledgeSearcher interface {
	SimilarityQuery(ctx context.Context, collection, query string, limit int, filter map[string]string) ([]models.Match, error)
}

// ContextRetriever looks up tips and products relevant to a message
type ContextRetriever struct {
	store   KnowledgeSearcher
	limit   int
	timeout time.Duration
}

// NewContextRetriever creates a retriever returning up to limit matches per collection
func NewContextRetriever(store KnowledgeSearcher, limit int, timeout time.Duration) *ContextRetriever {
	return &ContextRetriever{store: store, limit: limit, timeout: timeout}
}

// Retrieve is best-effort: any store error yields an empty context tagged
// with the failure kind
func (r *ContextRetriever) Retrieve(ctx context.Context, query string) models.RetrievedContext {
	if r.store == nil {
		return models.RetrievedContext{Failure: models.FailureStore}
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var tips, products []models.Match
	g, gctx := errgroup.WithContext(callCtx)
	g.Go(func() error {
		var err error
		tips, err = r.store.SimilarityQuery(gctx, models.CollectionHealthTips, query, r.limit, nil)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = r.store.SimilarityQuery(gctx, models.CollectionProducts, query, r.limit, nil)
		return err
	})

	if err := g.Wait(); err != nil {
		kind := models.FailureStore
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			kind = models.FailureTimeout
		}
		log.Printf("⚠️  [RAG] Context retrieval failed (%s): %v", kind, err)
		return models.RetrievedContext{Snippets: []models.Snippet{}, Failure: kind}
	}

	snippets := make([]models.Snippet, 0, len(tips)+len(products))
	for _, m := range tips {
		snippets = append(snippets, models.Snippet{
			Kind:   models.SnippetTip,
			Source: m.MetaString("category", "general"),
			Text:   m.Document,
		})
	}
	for _, m := range products {
		snippets = append(snippets, models.Snippet{
			Kind:   models.SnippetProduct,
			Source: m.MetaString("name", "Unknown"),
			Text:   m.Document,
		})
	}

	log.Printf("🔎 [RAG] Retrieved %d tips and %d products", len(tips), len(products))
	return models.RetrievedContext{Snippets: snippets}
}
