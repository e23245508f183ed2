package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"healthbot/internal/models"
)

const conversationKeyPrefix = "healthbot:conversation:"

// RedisConversationStore shares conversations between server instances.
// Each user is a Redis list of JSON turns trimmed to the cap on every append.
type RedisConversationStore struct {
	client   *redis.Client
	maxTurns int
}

// NewRedisConversationStore keeps at most 2*maxHistory turns per user
func NewRedisConversationStore(client *redis.Client, maxHistory int) *RedisConversationStore {
	return &RedisConversationStore{client: client, maxTurns: 2 * maxHistory}
}

func conversationKey(userID string) string {
	return conversationKeyPrefix + userID
}

// Append pushes turns and trims the list in one transaction
func (s *RedisConversationStore) Append(ctx context.Context, userID string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}

	values := make([]interface{}, len(turns))
	for i, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal turn: %w", err)
		}
		values[i] = data
	}

	key := conversationKey(userID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append conversation: %w", err)
	}
	return nil
}

// Recent returns up to limit of the newest turns, oldest first
func (s *RedisConversationStore) Recent(ctx context.Context, userID string, limit int) ([]models.Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}

	raw, err := s.client.LRange(ctx, conversationKey(userID), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read conversation: %w", err)
	}

	turns := make([]models.Turn, 0, len(raw))
	for _, item := range raw {
		var t models.Turn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			log.Printf("⚠️  [CONVERSATION] Skipping corrupt turn for user: %v", err)
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}

// Len returns the number of stored turns
func (s *RedisConversationStore) Len(ctx context.Context, userID string) (int, error) {
	n, err := s.client.LLen(ctx, conversationKey(userID)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read conversation length: %w", err)
	}
	return int(n), nil
}
