package services

import (
	"context"
	"sync"

	"healthbot/internal/models"
)

// ConversationStore keeps each user's recent turns, bounded to a fixed number
// of turns with the oldest evicted first
type ConversationStore interface {
	// Append adds turns to the user's conversation atomically and in order
	Append(ctx context.Context, userID string, turns ...models.Turn) error
	// Recent returns up to limit of the newest turns, oldest first
	Recent(ctx context.Context, userID string, limit int) ([]models.Turn, error)
	// Len returns the number of stored turns for the user
	Len(ctx context.Context, userID string) (int, error)
}

type conversation struct {
	mu    sync.Mutex
	turns []models.Turn
}

// MemoryConversationStore is the single-process conversation store
type MemoryConversationStore struct {
	maxTurns      int
	conversations sync.Map // userID -> *conversation
}

// NewMemoryConversationStore keeps at most 2*maxHistory turns per user
func NewMemoryConversationStore(maxHistory int) *MemoryConversationStore {
	return &MemoryConversationStore{maxTurns: 2 * maxHistory}
}

func (s *MemoryConversationStore) get(userID string) *conversation {
	if conv, ok := s.conversations.Load(userID); ok {
		return conv.(*conversation)
	}
	conv, _ := s.conversations.LoadOrStore(userID, &conversation{})
	return conv.(*conversation)
}

// Append adds turns, evicting the oldest beyond the cap
func (s *MemoryConversationStore) Append(_ context.Context, userID string, turns ...models.Turn) error {
	conv := s.get(userID)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	conv.turns = append(conv.turns, turns...)
	if overflow := len(conv.turns) - s.maxTurns; overflow > 0 {
		kept := make([]models.Turn, s.maxTurns)
		copy(kept, conv.turns[overflow:])
		conv.turns = kept
	}
	return nil
}

// Recent returns a copy of the newest turns
func (s *MemoryConversationStore) Recent(_ context.Context, userID string, limit int) ([]models.Turn, error) {
	v, ok := s.conversations.Load(userID)
	if !ok {
		return []models.Turn{}, nil
	}
	conv := v.(*conversation)
	conv.mu.Lock()
	defer conv.mu.Unlock()

	start := 0
	if limit > 0 && len(conv.turns) > limit {
		start = len(conv.turns) - limit
	}
	out := make([]models.Turn, len(conv.turns)-start)
	copy(out, conv.turns[start:])
	return out, nil
}

// Len returns the number of stored turns
func (s *MemoryConversationStore) Len(_ context.Context, userID string) (int, error) {
	v, ok := s.conversations.Load(userID)
	if !ok {
		return 0, nil
	}
	conv := v.(*conversation)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return len(conv.turns), nil
}
