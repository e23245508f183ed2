package jobs

import (
	"context"
	"fmt"
	"log"
	"time"

	"healthbot/internal/models"
)

// HistoryPruner deletes old records from a knowledge collection
type HistoryPruner interface {
	DeleteBefore(ctx context.Context, collection string, cutoff time.Time) (int64, error)
}

// ArchivePurger deletes old mirrored transcripts
type ArchivePurger interface {
	PurgeArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionCleanupJob deletes chat transcripts older than the retention window
type RetentionCleanupJob struct {
	store     HistoryPruner
	archive   ArchivePurger
	retention time.Duration
	now       func() time.Time
}

// NewRetentionCleanupJob creates a new retention cleanup job. archive may be nil.
func NewRetentionCleanupJob(store HistoryPruner, archive ArchivePurger, retentionDays int) *RetentionCleanupJob {
	return &RetentionCleanupJob{
		store:     store,
		archive:   archive,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		now:       time.Now,
	}
}

// Run executes the retention cleanup
func (j *RetentionCleanupJob) Run(ctx context.Context) error {
	if j.retention <= 0 {
		log.Println("[RETENTION] Retention cleanup disabled (CHAT_RETENTION_DAYS <= 0)")
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	log.Printf("[RETENTION] Deleting chat history before %s", cutoff.Format(time.RFC3339))

	deleted, err := j.store.DeleteBefore(ctx, models.CollectionChatHistory, cutoff)
	if err != nil {
		return fmt.Errorf("chat history cleanup failed: %w", err)
	}

	var archived int64
	if j.archive != nil {
		archived, err = j.archive.PurgeArchiveBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("archive cleanup failed: %w", err)
		}
	}

	log.Printf("[RETENTION] Cleanup complete: deleted %d transcripts and %d archived", deleted, archived)
	return nil
}
