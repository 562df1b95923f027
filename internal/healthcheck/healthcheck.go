package healthcheck

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Pinger 可探活的依赖
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker 健康检查器
type HealthChecker struct {
	pgPool *pgxpool.Pool
	redis  Pinger
}

// NewHealthChecker 创建健康检查器；pgPool 与 redis 均可为 nil（内存存储 / 未启用 Redis）
func NewHealthChecker(pgPool *pgxpool.Pool, redis Pinger) *HealthChecker {
	return &HealthChecker{
		pgPool: pgPool,
		redis:  redis,
	}
}

// CheckResult 健康检查结果
type CheckResult struct {
	Status  string            `json:"status"` // "ok" or "error"
	Checks  map[string]string `json:"checks"`
	Version string            `json:"version,omitempty"`
}

// LivenessCheck 存活检查（快速返回，不检查依赖）
func (h *HealthChecker) LivenessCheck() CheckResult {
	return CheckResult{
		Status: "ok",
		Checks: map[string]string{
			"service": "running",
		},
	}
}

// ReadinessCheck 就绪检查（检查所有依赖）
func (h *HealthChecker) ReadinessCheck(ctx context.Context) CheckResult {
	if ctx == nil {
		ctx = context.Background()
	}
	result := CheckResult{
		Checks: make(map[string]string),
	}

	// 检查 PostgreSQL 连接
	if h.pgPool != nil {
		h.check(ctx, &result, "postgres", h.pgPool)
	}

	// 检查 Redis 连接
	if h.redis != nil {
		h.check(ctx, &result, "redis", h.redis)
	}

	// 如果所有检查都通过
	if result.Status == "" {
		result.Status = "ok"
	}

	return result
}

func (h *HealthChecker) check(ctx context.Context, result *CheckResult, name string, p Pinger) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := p.Ping(ctx); err != nil {
		result.Checks[name] = "error: " + err.Error()
		result.Status = "error"
		return
	}
	result.Checks[name] = "ok"
}
