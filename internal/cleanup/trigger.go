// Package cleanup 病例收尾：外部确认信号分类、首个信号触发清理、执行清理。
package cleanup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/casestate"
	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/queue"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// Trigger 基于 CAS 的清理触发器：同一病例只有第一个调用方胜出
type Trigger struct {
	cases repository.CaseStore
	queue *queue.Client
	log   zerolog.Logger
}

func NewTrigger(cases repository.CaseStore, q *queue.Client, log zerolog.Logger) *Trigger {
	return &Trigger{cases: cases, queue: q, log: log}
}

// MaybeTrigger 尝试触发清理，返回是否胜出。
// 落败不是错误；胜出方负责入队 execute_cleanup。
// 胜出但入队失败时返回 won=true 和错误，启动时的补偿扫描会为 CLEANUP_RUNNING 病例补入队。
func (t *Trigger) MaybeTrigger(ctx context.Context, caseID uuid.UUID, actor string) (bool, error) {
	if err := casestate.AssertTransition(model.CaseStatusWaitR1CleanupThumbs, model.CaseStatusCleanupRunning); err != nil {
		return false, err
	}

	won, err := t.cases.MaybeTriggerCleanup(ctx, caseID, actor)
	if err != nil {
		metrics.RecordError("cleanup", "cas")
		return false, fmt.Errorf("cleanup cas: %w", err)
	}
	log := t.log.With().Str("case_id", caseID.String()).Str("actor", actor).Logger()
	if !won {
		metrics.RecordCleanupTrigger("lost")
		log.Debug().Msg("清理已被其他信号触发")
		return false, nil
	}
	metrics.RecordCleanupTrigger("won")

	job, _, err := t.queue.Enqueue(ctx, queue.EnqueueParams{
		JobType: model.JobTypeExecuteCleanup,
		CaseID:  &caseID,
		Payload: map[string]any{"triggered_by": actor},
		Unique:  true,
	})
	if err != nil {
		log.Error().Err(err).Msg("execute_cleanup 入队失败")
		return true, fmt.Errorf("enqueue execute_cleanup: %w", err)
	}
	if job != nil {
		log = log.With().Int64("job_id", job.ID).Logger()
	}
	log.Info().Msg("已触发清理")
	return true, nil
}
