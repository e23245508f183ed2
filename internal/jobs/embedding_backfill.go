package jobs

import (
	"context"
	"fmt"
	"log"

	"healthbot/internal/services"
)

// EmbeddingStore is the part of the knowledge store the backfill needs
type EmbeddingStore interface {
	MissingEmbeddings(ctx context.Context, limit int) ([]services.EmbeddingTask, error)
	Embed(ctx context.Context, text string) ([]float32, error)
	SetEmbedding(ctx context.Context, collection, id string, vec []float32) error
}

// EmbeddingBackfillJob embeds tips and products stored without a vector,
// e.g. while the embedding service was unavailable
type EmbeddingBackfillJob struct {
	store     EmbeddingStore
	batchSize int
}

// NewEmbeddingBackfillJob creates the job
func NewEmbeddingBackfillJob(store EmbeddingStore, batchSize int) *EmbeddingBackfillJob {
	if batchSize <= 0 {
		batchSize = 50
	}
	return &EmbeddingBackfillJob{store: store, batchSize: batchSize}
}

// Run embeds one batch. A failure on one record does not stop the batch.
func (j *EmbeddingBackfillJob) Run(ctx context.Context) error {
	tasks, err := j.store.MissingEmbeddings(ctx, j.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list records: %w", err)
	}
	if len(tasks) == 0 {
		return nil
	}

	filled := 0
	for _, task := range tasks {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		vec, err := j.store.Embed(ctx, task.Document)
		if err != nil {
			log.Printf("⚠️  [BACKFILL] Embedding failed for %s/%s: %v", task.Collection, task.ID, err)
			continue
		}
		if err := j.store.SetEmbedding(ctx, task.Collection, task.ID, vec); err != nil {
			log.Printf("⚠️  [BACKFILL] %v", err)
			continue
		}
		filled++
	}

	log.Printf("🧮 [BACKFILL] Embedded %d of %d records", filled, len(tasks))
	return nil
}
