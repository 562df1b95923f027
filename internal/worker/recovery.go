package workers

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/queue"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// recoveryRules 停留在这些状态的病例需要一个后续作业才能继续推进
var recoveryRules = []struct {
	status  model.CaseStatus
	jobType string
}{
	{model.CaseStatusDoctorAccepted, model.JobTypePostRoom3Request},
	{model.CaseStatusFailed, model.JobTypePostRoom1FinalFailure},
	{model.CaseStatusCleanupRunning, model.JobTypeExecuteCleanup},
}

// recoveryPageSize 单次扫描每种状态最多处理的病例数
const recoveryPageSize = 200

// Recovery 启动恢复扫描：为缺少后续作业的病例补入队
type Recovery struct {
	cases repository.CaseStore
	queue *queue.Client
	audit *audit.Recorder
	log   zerolog.Logger
}

func NewRecovery(cases repository.CaseStore, q *queue.Client, recorder *audit.Recorder, log zerolog.Logger) *Recovery {
	return &Recovery{cases: cases, queue: q, audit: recorder, log: log}
}

// Recover 返回补入队的作业数；已有活跃作业的病例跳过，重复执行不会重复入队
func (r *Recovery) Recover(ctx context.Context) (int, error) {
	total := 0
	for _, rule := range recoveryRules {
		cases, err := r.cases.ListByStatus(ctx, []model.CaseStatus{rule.status}, recoveryPageSize)
		if err != nil {
			return total, fmt.Errorf("list %s cases: %w", rule.status, err)
		}

		for _, c := range cases {
			caseID := c.CaseID
			job, enqueued, err := r.queue.Enqueue(ctx, queue.EnqueueParams{
				JobType: rule.jobType,
				CaseID:  &caseID,
				Payload: map[string]any{"source": "recovery"},
				Unique:  true,
			})
			if err != nil {
				return total, fmt.Errorf("enqueue %s for case %s: %w", rule.jobType, caseID, err)
			}
			if !enqueued {
				continue
			}
			total++
			r.audit.System(ctx, caseID, audit.EventJobEnqueuedByRecovery, map[string]any{
				"job_id":   job.ID,
				"job_type": rule.jobType,
				"status":   rule.status,
			})
		}
	}

	if total > 0 {
		r.log.Info().Int("count", total).Msg("恢复扫描已补入队作业")
	}
	return total, nil
}
