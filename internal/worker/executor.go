package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/logger"
	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// Executor 调用处理函数并把结果写回作业队列
type Executor struct {
	jobs      repository.JobStore
	registry  *Registry
	finalizer *Finalizer
	timeout   time.Duration
	log       zerolog.Logger
}

func NewExecutor(jobs repository.JobStore, registry *Registry, finalizer *Finalizer, timeout time.Duration, log zerolog.Logger) *Executor {
	return &Executor{
		jobs:      jobs,
		registry:  registry,
		finalizer: finalizer,
		timeout:   timeout,
		log:       log,
	}
}

// Execute 处理一个已认领的作业。ctx 应与停机信号解耦，保证结果能写回。
func (e *Executor) Execute(ctx context.Context, job repository.Job) {
	log := logger.WithJob(e.log, job.ID, job.JobType)

	h, ok := e.registry.Get(job.JobType)
	if !ok {
		dead, err := e.jobs.DeadLetter(ctx, job.ID, job.ClaimedBy, "unknown job type: "+job.JobType)
		if err != nil {
			log.Error().Err(err).Msg("未知作业类型，写入 dead 失败")
			return
		}
		metrics.RecordJobFinished(job.JobType, "unknown_type", 0)
		log.Warn().Msg("未知作业类型，直接进入 dead")
		e.finalize(ctx, dead, DeadReasonUnknownType)
		return
	}

	start := time.Now()
	res := e.invoke(ctx, h, &job)
	elapsed := time.Since(start)

	switch res.Outcome {
	case OutcomeSuccess:
		if err := e.jobs.Complete(ctx, job.ID, job.ClaimedBy); err != nil {
			log.Error().Err(err).Msg("标记作业完成失败")
			return
		}
		metrics.RecordJobFinished(job.JobType, "success", elapsed.Seconds())
		log.Info().Dur("elapsed", elapsed).Int("attempts", job.Attempts).Msg("作业完成")

	case OutcomeFatal:
		dead, err := e.jobs.DeadLetter(ctx, job.ID, job.ClaimedBy, res.errorText())
		if err != nil {
			log.Error().Err(err).Msg("写入 dead 失败")
			return
		}
		metrics.RecordJobFinished(job.JobType, "fatal", elapsed.Seconds())
		log.Error().Err(res.Err).Msg("作业不可重试，进入 dead")
		e.finalize(ctx, dead, DeadReasonFatal)

	default:
		failed, exhausted, err := e.jobs.Fail(ctx, job.ID, job.ClaimedBy, res.errorText())
		if err != nil {
			log.Error().Err(err).Msg("记录作业失败出错")
			return
		}
		if exhausted {
			metrics.RecordJobFinished(job.JobType, "dead", elapsed.Seconds())
			log.Error().Err(res.Err).Int("attempts", failed.Attempts).Msg("作业超过最大重试次数，进入 dead")
			e.finalize(ctx, failed, DeadReasonMaxRetries)
			return
		}
		metrics.RecordJobFinished(job.JobType, "retry", elapsed.Seconds())
		log.Warn().Err(res.Err).
			Int("attempts", failed.Attempts).
			Int("max_attempts", failed.MaxAttempts).
			Time("run_after", failed.RunAfter).
			Msg("作业失败，等待重试")
	}
}

// invoke 带超时调用处理函数；panic 视为可重试失败
func (e *Executor) invoke(ctx context.Context, h Handler, job *repository.Job) (res Result) {
	hctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			metrics.RecordError("worker", "panic")
			res = Retry(fmt.Errorf("handler panic: %v", r))
		}
	}()

	res = h(hctx, job)
	if res.Outcome == OutcomeRetry && res.Err == nil && errors.Is(hctx.Err(), context.DeadlineExceeded) {
		res.Err = hctx.Err()
	}
	return res
}

func (e *Executor) finalize(ctx context.Context, job *repository.Job, reason DeadReason) {
	if e.finalizer == nil {
		return
	}
	e.finalizer.Finalize(ctx, job, reason)
}
