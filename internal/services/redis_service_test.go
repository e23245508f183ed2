package services

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRedisService_RejectsBadURL(t *testing.T) {
	_, err := NewRedisService("not-a-redis-url")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid REDIS_URL")
}

func TestNewRedisService_Unreachable(t *testing.T) {
	_, err := NewRedisService("redis://127.0.0.1:1/0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis unreachable")
}

func TestNewRedisService_Live(t *testing.T) {
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}
	svc, err := NewRedisService(url)
	require.NoError(t, err)
	require.NoError(t, svc.Ping(context.Background()))
	require.NoError(t, svc.Close())
}
