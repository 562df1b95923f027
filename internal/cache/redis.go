package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix 所有 key 的统一前缀
const keyPrefix = "caseflow:"

// RedisCache Redis 客户端，用于外部信号短窗口去重
type RedisCache struct {
	client *redis.Client
}

// Options Redis 连接参数
type Options struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisCache 创建 Redis 客户端并测试连接
func NewRedisCache(opts Options) (*RedisCache, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisCache{client: client}, nil
}

// Close 关闭 Redis 连接
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// Ping 检查连接（就绪检查使用）
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// FirstSeen 以 SETNX 记录 key，窗口内首次出现返回 true
func (c *RedisCache) FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, CacheKey(key), time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	return ok, nil
}

// Forget 删除去重记录
func (c *RedisCache) Forget(ctx context.Context, key string) error {
	return c.client.Del(ctx, CacheKey(key)).Err()
}

// CacheKey 生成带前缀的 key
func CacheKey(parts ...string) string {
	key := keyPrefix
	for i, part := range parts {
		if i > 0 {
			key += ":"
		}
		key += part
	}
	return key
}
