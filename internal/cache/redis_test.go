package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "caseflow:signal", CacheKey("signal"))
	assert.Equal(t, "caseflow:signal:room1:$ref:@alice", CacheKey("signal", "room1", "$ref", "@alice"))
}

func TestNewRedisCache_EmptyAddr(t *testing.T) {
	_, err := NewRedisCache(Options{})
	assert.Error(t, err)
}

func TestRedisCache_FirstSeen(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("未设置 TEST_REDIS_ADDR，跳过 Redis 集成测试")
	}

	c, err := NewRedisCache(Options{Addr: addr})
	require.NoError(t, err)
	defer c.Close()

	ctx := context.Background()
	key := "test:" + uuid.NewString()
	defer func() { _ = c.Forget(ctx, key) }()

	require.NoError(t, c.Ping(ctx))

	first, err := c.FirstSeen(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = c.FirstSeen(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.False(t, first, "窗口内重复出现")

	require.NoError(t, c.Forget(ctx, key))
	first, err = c.FirstSeen(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.True(t, first, "删除后应视为首次")
}
