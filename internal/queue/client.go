// Package queue 是所有生产方（HTTP、终结处理、清理、恢复扫描）共用的入队入口。
package queue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// Client 作业入队客户端
type Client struct {
	jobs               repository.JobStore
	defaultMaxAttempts int
	log                zerolog.Logger
	now                func() time.Time
}

// NewClient 创建入队客户端；defaultMaxAttempts <= 0 时使用仓储默认值
func NewClient(jobs repository.JobStore, defaultMaxAttempts int, log zerolog.Logger) *Client {
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = repository.DefaultMaxAttempts
	}
	return &Client{
		jobs:               jobs,
		defaultMaxAttempts: defaultMaxAttempts,
		log:                log,
		now:                time.Now,
	}
}

// Enqueue 入队；Unique 且已存在活跃作业时返回 (nil, false, nil)
func (c *Client) Enqueue(ctx context.Context, p EnqueueParams) (*repository.Job, bool, error) {
	in, err := p.toInput(c.now(), c.defaultMaxAttempts)
	if err != nil {
		return nil, false, err
	}

	if p.Unique {
		active, err := c.jobs.HasActiveJob(ctx, *p.CaseID, p.JobType)
		if err != nil {
			return nil, false, err
		}
		if active {
			c.log.Debug().
				Str("case_id", p.CaseID.String()).
				Str("job_type", p.JobType).
				Msg("已存在活跃作业，跳过入队")
			return nil, false, nil
		}
	}

	job, err := c.jobs.Enqueue(ctx, in)
	if err != nil {
		metrics.RecordError("queue", "enqueue")
		return nil, false, err
	}
	metrics.RecordJobEnqueued(job.JobType)

	ev := c.log.Info().Int64("job_id", job.ID).Str("job_type", job.JobType)
	if job.CaseID != nil {
		ev = ev.Str("case_id", job.CaseID.String())
	}
	ev.Time("run_after", job.RunAfter).Msg("作业已入队")
	return job, true, nil
}

// DefaultMaxAttempts 返回默认最大尝试次数
func (c *Client) DefaultMaxAttempts() int {
	return c.defaultMaxAttempts
}
