package workers

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/casestate"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/queue"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// DeadReason 作业进入 dead 的原因
type DeadReason string

const (
	DeadReasonMaxRetries  DeadReason = "max_retries"
	DeadReasonFatal       DeadReason = "fatal"
	DeadReasonUnknownType DeadReason = "unknown_type"
)

// Finalizer 作业进入 dead 后的收尾：审计、病例置 FAILED、入队失败通知
type Finalizer struct {
	cases        repository.CaseStore
	transitioner *casestate.Transitioner
	audit        *audit.Recorder
	queue        *queue.Client
	log          zerolog.Logger
}

func NewFinalizer(cases repository.CaseStore, recorder *audit.Recorder, q *queue.Client, log zerolog.Logger) *Finalizer {
	return &Finalizer{
		cases:        cases,
		transitioner: casestate.NewTransitioner(cases),
		audit:        recorder,
		queue:        q,
		log:          log,
	}
}

// Finalize 处理已经 dead 的作业。
// 已处于 FAILED 或清理阶段的病例不再置为失败，也不再发送失败通知，避免失败通知自身失败时的循环。
func (f *Finalizer) Finalize(ctx context.Context, job *repository.Job, reason DeadReason) {
	log := f.log.With().Int64("job_id", job.ID).Str("job_type", job.JobType).Str("reason", string(reason)).Logger()

	if job.CaseID == nil {
		log.Warn().Str("last_error", job.LastError).Msg("作业已进入 dead（无关联病例）")
		return
	}
	caseID := *job.CaseID
	log = log.With().Str("case_id", caseID.String()).Logger()

	eventType := audit.EventJobMaxRetriesExceeded
	if reason != DeadReasonMaxRetries {
		eventType = audit.EventJobDeadLettered
	}
	f.audit.System(ctx, caseID, eventType, map[string]any{
		"job_id":       job.ID,
		"job_type":     job.JobType,
		"attempts":     job.Attempts,
		"max_attempts": job.MaxAttempts,
		"last_error":   job.LastError,
		"reason":       reason,
	})

	status, err := f.cases.GetStatus(ctx, caseID)
	if err != nil {
		log.Error().Err(err).Msg("读取病例状态失败，跳过失败处理")
		return
	}
	if status == model.CaseStatusFailed || status.InCleanupStage() {
		log.Info().Str("status", string(status)).Msg("病例已失败或处于清理阶段，不再发送失败通知")
		return
	}

	if !casestate.CanTransition(status, model.CaseStatusFailed) {
		f.audit.System(ctx, caseID, audit.EventCaseFailureNotApplied, map[string]any{
			"job_id":      job.ID,
			"job_type":    job.JobType,
			"from_status": status,
		})
		log.Warn().Str("status", string(status)).Msg("病例状态不允许置为 FAILED")
		return
	}

	if err := f.transitioner.TransitionFrom(ctx, caseID, status, model.CaseStatusFailed); err != nil {
		log.Error().Err(err).Str("from", string(status)).Msg("病例置为 FAILED 失败")
		return
	}
	f.audit.System(ctx, caseID, audit.EventCaseFailedMaxRetries, map[string]any{
		"job_id":      job.ID,
		"job_type":    job.JobType,
		"from_status": status,
		"to_status":   model.CaseStatusFailed,
	})
	log.Warn().Str("from", string(status)).Msg("病例已置为 FAILED")

	notify, enqueued, err := f.queue.Enqueue(ctx, queue.EnqueueParams{
		JobType: model.JobTypePostRoom1FinalFailure,
		CaseID:  &caseID,
		Payload: map[string]any{"cause_job_id": job.ID, "cause_job_type": job.JobType},
		Unique:  true,
	})
	if err != nil {
		log.Error().Err(err).Msg("失败通知入队失败")
		return
	}
	if !enqueued {
		return
	}
	f.audit.System(ctx, caseID, audit.EventJobEnqueuedPostRoom1Failure, map[string]any{
		"job_id":       notify.ID,
		"cause_job_id": job.ID,
	})
}
