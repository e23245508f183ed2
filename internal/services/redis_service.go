package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisService owns the Redis client behind the shared conversation store
type RedisService struct {
	client *redis.Client
}

// NewRedisService dials redisURL and fails fast when the server is unreachable,
// so the caller can fall back to in-memory conversations
func NewRedisService(redisURL string) (*RedisService, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}

	// One history read and one pipelined write per message
	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.DialTimeout = 3 * time.Second
	opts.ReadTimeout = 2 * time.Second
	opts.WriteTimeout = 2 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), opts.DialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis unreachable at %s: %w", opts.Addr, err)
	}

	log.Printf("✅ [REDIS] Connected to %s (db %d)", opts.Addr, opts.DB)
	return &RedisService{client: client}, nil
}

// Client returns the underlying client for the conversation store
func (r *RedisService) Client() *redis.Client {
	return r.client
}

// Ping reports whether Redis answers, for the health endpoint
func (r *RedisService) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the connection pool
func (r *RedisService) Close() error {
	return r.client.Close()
}
