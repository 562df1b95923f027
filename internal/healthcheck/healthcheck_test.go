package healthcheck

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthChecker_LivenessCheck(t *testing.T) {
	// Liveness check 不依赖外部服务，应该总是成功
	hc := NewHealthChecker(nil, nil)

	result := hc.LivenessCheck()

	assert.Equal(t, "ok", result.Status)
	assert.Contains(t, result.Checks, "service")
	assert.Equal(t, "running", result.Checks["service"])
}

func TestHealthChecker_ReadinessCheck(t *testing.T) {
	ok := pingerFunc(func(context.Context) error { return nil })
	down := pingerFunc(func(context.Context) error { return errors.New("connection refused") })

	t.Run("无依赖时就绪", func(t *testing.T) {
		result := NewHealthChecker(nil, nil).ReadinessCheck(context.Background())
		assert.Equal(t, "ok", result.Status)
		assert.Empty(t, result.Checks)
	})

	t.Run("依赖正常", func(t *testing.T) {
		result := NewHealthChecker(nil, ok).ReadinessCheck(context.Background())
		assert.Equal(t, "ok", result.Status)
		assert.Equal(t, "ok", result.Checks["redis"])
	})

	t.Run("依赖异常", func(t *testing.T) {
		hc := NewHealthChecker(nil, down)

		result := hc.ReadinessCheck(nil)
		assert.Equal(t, "error", result.Status)
		assert.Contains(t, result.Checks["redis"], "connection refused")
	})
}
