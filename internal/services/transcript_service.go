package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"

	"healthbot/internal/database"
	"healthbot/internal/models"
)

// KnowledgeAppender is the write side of the knowledge store
type KnowledgeAppender interface {
	Append(ctx context.Context, collection, document string, metadata map[string]any, id string) (string, error)
}

// TranscriptRecorder archives completed exchanges
type TranscriptRecorder interface {
	RecordChat(ctx context.Context, transcript models.ChatTranscript) error
}

// TranscriptService writes chat transcripts and feedback to the knowledge
// store and mirrors them to MongoDB when an archive is configured
type TranscriptService struct {
	store KnowledgeAppender
	mongo *database.MongoDB
}

// NewTranscriptService creates the service. mongo may be nil.
func NewTranscriptService(store KnowledgeAppender, mongo *database.MongoDB) *TranscriptService {
	return &TranscriptService{store: store, mongo: mongo}
}

// RecordChat stores one exchange
func (s *TranscriptService) RecordChat(ctx context.Context, t models.ChatTranscript) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}

	meta := map[string]any{
		"user_id":   t.UserID,
		"channel":   string(t.Channel),
		"timestamp": t.CreatedAt.Format(time.RFC3339),
	}
	if _, err := s.store.Append(ctx, models.CollectionChatHistory, t.Document(), meta, t.ID); err != nil {
		return fmt.Errorf("failed to record chat: %w", err)
	}

	if s.mongo != nil {
		if _, err := s.mongo.Collection(database.CollectionChatTranscripts).InsertOne(ctx, t); err != nil {
			log.Printf("⚠️  [TRANSCRIPT] Mongo mirror failed for chat %s: %v", t.ID, err)
		}
	}
	return nil
}

// RecordFeedback stores a rating. Rating must be between 1 and 5.
func (s *TranscriptService) RecordFeedback(ctx context.Context, f models.FeedbackEntry) (string, error) {
	if f.Rating < 1 || f.Rating > 5 {
		return "", fmt.Errorf("rating must be between 1 and 5, got %d", f.Rating)
	}
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt.IsZero() {
		f.CreatedAt = time.Now().UTC()
	}

	meta := map[string]any{
		"user_id":   f.UserID,
		"rating":    f.Rating,
		"timestamp": f.CreatedAt.Format(time.RFC3339),
	}
	if _, err := s.store.Append(ctx, models.CollectionFeedback, f.Comment, meta, f.ID); err != nil {
		return "", fmt.Errorf("failed to record feedback: %w", err)
	}

	if s.mongo != nil {
		if _, err := s.mongo.Collection(database.CollectionFeedback).InsertOne(ctx, f); err != nil {
			log.Printf("⚠️  [TRANSCRIPT] Mongo mirror failed for feedback %s: %v", f.ID, err)
		}
	}
	return f.ID, nil
}

// PurgeArchiveBefore removes mirrored transcripts older than cutoff
func (s *TranscriptService) PurgeArchiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if s.mongo == nil {
		return 0, nil
	}
	res, err := s.mongo.Collection(database.CollectionChatTranscripts).DeleteMany(ctx, bson.M{
		"createdAt": bson.M{"$lt": cutoff},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to purge archived transcripts: %w", err)
	}
	return res.DeletedCount, nil
}
