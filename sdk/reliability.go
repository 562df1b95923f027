package sdk

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"time"

	"github.com/azhengyongqin/caseflow/internal/backoff"
)

// RetryConfig 请求重试配置
type RetryConfig struct {
	MaxRetries     int           // 最大重试次数，默认 3；0 表示不重试
	InitialBackoff time.Duration // 初始退避时间，默认 200 毫秒
	MaxBackoff     time.Duration // 最大退避时间，默认 5 秒
	BackoffFactor  float64       // 退避因子，默认 2.0（指数退避）
}

// DefaultRetryConfig 默认重试配置
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:     3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
		BackoffFactor:  2.0,
	}
}

func (c RetryConfig) policy() backoff.Policy {
	return backoff.Policy{
		Initial:     c.InitialBackoff,
		Factor:      c.BackoffFactor,
		Max:         c.MaxBackoff,
		JitterRatio: 0.2,
	}.Normalize()
}

// permanentError 不可重试的错误（4xx、请求构造失败、响应解码失败）
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error { return &permanentError{err: err} }

// withRetry 网络错误与 5xx/429 按指数退避重试；ctx 取消时立即返回
func withRetry(ctx context.Context, cfg RetryConfig, op string, fn func(context.Context) error) error {
	policy := cfg.policy()
	seed := rand.Int64() //nolint:gosec // 抖动无需密码学随机

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(policy.Delay(seed, attempt))
			select {
			case <-ctx.Done():
				t.Stop()
				return ctx.Err()
			case <-t.C:
			}
		}

		err := fn(ctx)
		if err == nil {
			if attempt > 0 {
				log.Printf("[caseflow-sdk] 重试成功: op=%s, attempt=%d", op, attempt)
			}
			return nil
		}

		var pe *permanentError
		if errors.As(err, &pe) {
			return pe.err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		log.Printf("[caseflow-sdk] 请求失败 (尝试 %d/%d): op=%s, err=%v", attempt+1, cfg.MaxRetries+1, op, err)
	}

	return fmt.Errorf("请求失败，已达最大重试次数: %w", lastErr)
}
