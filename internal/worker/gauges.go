package workers

import (
	"context"
	"time"

	"github.com/lthibault/jitterbug/v2"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// GaugeRefresher 定期把各状态作业数量写入队列 gauge
type GaugeRefresher struct {
	jobs     repository.JobStore
	interval time.Duration
	hooks    []func()
	log      zerolog.Logger
}

// NewGaugeRefresher hooks 在每次刷新后调用（例如连接池统计）
func NewGaugeRefresher(jobs repository.JobStore, interval time.Duration, log zerolog.Logger, hooks ...func()) *GaugeRefresher {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &GaugeRefresher{jobs: jobs, interval: interval, hooks: hooks, log: log}
}

// Run 阻塞直到 ctx 取消；多个实例的刷新时间带抖动错开
func (g *GaugeRefresher) Run(ctx context.Context) {
	if err := g.Refresh(ctx); err != nil {
		g.log.Warn().Err(err).Msg("刷新队列指标失败")
	}

	ticker := jitterbug.New(g.interval, &jitterbug.Norm{Stdev: 30 * time.Millisecond})
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := g.Refresh(ctx); err != nil && ctx.Err() == nil {
				g.log.Warn().Err(err).Msg("刷新队列指标失败")
			}
		}
	}
}

// Refresh 立即刷新一次
func (g *GaugeRefresher) Refresh(ctx context.Context) error {
	counts, err := g.jobs.CountByStatus(ctx)
	if err != nil {
		metrics.RecordError("metrics", "count_jobs")
		return err
	}
	for _, s := range model.AllJobStatuses() {
		metrics.UpdateQueueSize(string(s), float64(counts[s]))
	}
	for _, h := range g.hooks {
		h()
	}
	return nil
}
