package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthbot/internal/models"
)

func exchange(i int) []models.Turn {
	return []models.Turn{
		models.NewTurn(models.RoleUser, fmt.Sprintf("question %d", i)),
		models.NewTurn(models.RoleAssistant, fmt.Sprintf("answer %d", i)),
	}
}

// conversationStoreContract runs the behaviour every ConversationStore must satisfy
func conversationStoreContract(t *testing.T, newStore func(maxHistory int) ConversationStore) {
	t.Run("evicts oldest beyond cap", func(t *testing.T) {
		store := newStore(10)
		ctx := context.Background()

		for i := 1; i <= 11; i++ {
			require.NoError(t, store.Append(ctx, "u1", exchange(i)...))
		}

		n, err := store.Len(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 20, n)

		all, err := store.Recent(ctx, "u1", 0)
		require.NoError(t, err)
		require.Len(t, all, 20)
		assert.Equal(t, "question 2", all[0].Content)
		assert.Equal(t, "answer 11", all[19].Content)

		recent, err := store.Recent(ctx, "u1", 10)
		require.NoError(t, err)
		require.Len(t, recent, 10)
		assert.Equal(t, "question 7", recent[0].Content)
		assert.Equal(t, models.RoleUser, recent[0].Role)
	})

	t.Run("unknown user is empty", func(t *testing.T) {
		store := newStore(10)
		recent, err := store.Recent(context.Background(), "nobody", 5)
		require.NoError(t, err)
		assert.Empty(t, recent)

		n, err := store.Len(context.Background(), "nobody")
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("users are isolated", func(t *testing.T) {
		store := newStore(10)
		ctx := context.Background()
		require.NoError(t, store.Append(ctx, "alice", exchange(1)...))

		n, err := store.Len(ctx, "bob")
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestMemoryConversationStore(t *testing.T) {
	conversationStoreContract(t, func(maxHistory int) ConversationStore {
		return NewMemoryConversationStore(maxHistory)
	})
}

func TestMemoryConversationStore_ConcurrentAppendsKeepPairsTogether(t *testing.T) {
	store := NewMemoryConversationStore(100)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = store.Append(ctx, "u1", exchange(i)...)
		}(i)
	}
	wg.Wait()

	turns, err := store.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, turns, 100)

	for i := 0; i < len(turns); i += 2 {
		require.Equal(t, models.RoleUser, turns[i].Role)
		require.Equal(t, models.RoleAssistant, turns[i+1].Role)
		var q, a int
		fmt.Sscanf(turns[i].Content, "question %d", &q)
		fmt.Sscanf(turns[i+1].Content, "answer %d", &a)
		assert.Equal(t, q, a, "exchange split by a concurrent append")
	}
}

func TestMemoryConversationStore_RecentReturnsCopy(t *testing.T) {
	store := NewMemoryConversationStore(5)
	ctx := context.Background()
	require.NoError(t, store.Append(ctx, "u1", exchange(1)...))

	turns, err := store.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	turns[0].Content = "mutated"

	again, err := store.Recent(ctx, "u1", 0)
	require.NoError(t, err)
	assert.Equal(t, "question 1", again[0].Content)
}

// TestRedisConversationStore runs against a live server when TEST_REDIS_URL is set
func TestRedisConversationStore(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	conversationStoreContract(t, func(maxHistory int) ConversationStore {
		ctx := context.Background()
		for _, user := range []string{"u1", "nobody", "alice", "bob"} {
			require.NoError(t, client.Del(ctx, conversationKey(user)).Err())
		}
		return NewRedisConversationStore(client, maxHistory)
	})
}
