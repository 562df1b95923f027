package cleanup

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/casestate"
	"github.com/azhengyongqin/caseflow/internal/logger"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/notify"
	"github.com/azhengyongqin/caseflow/internal/repository"
	workers "github.com/azhengyongqin/caseflow/internal/worker"
)

// Cleaner 执行清理：撤回病例发布过的全部消息，然后 CLEANUP_RUNNING -> CLEANED
type Cleaner struct {
	cases     repository.CaseStore
	messages  repository.MessageStore
	messenger notify.Messenger
	audit     *audit.Recorder
	log       zerolog.Logger
}

func NewCleaner(cases repository.CaseStore, messages repository.MessageStore, messenger notify.Messenger, recorder *audit.Recorder, log zerolog.Logger) *Cleaner {
	return &Cleaner{
		cases:     cases,
		messages:  messages,
		messenger: messenger,
		audit:     recorder,
		log:       log,
	}
}

// Register 注册 execute_cleanup 处理函数
func (c *Cleaner) Register(reg *workers.Registry) error {
	return reg.Register(model.JobTypeExecuteCleanup, c.ExecuteCleanup)
}

// ExecuteCleanup execute_cleanup 处理函数；已 CLEANED 的病例直接成功
func (c *Cleaner) ExecuteCleanup(ctx context.Context, job *repository.Job) workers.Result {
	return workers.FromError(c.execute(ctx, job))
}

func (c *Cleaner) execute(ctx context.Context, job *repository.Job) error {
	if job.CaseID == nil {
		return workers.Permanent(errors.New("job has no case_id"))
	}
	caseID := *job.CaseID
	log := logger.WithJob(c.log, job.ID, job.JobType).With().Str("case_id", caseID.String()).Logger()

	status, err := c.cases.GetStatus(ctx, caseID)
	if errors.Is(err, repository.ErrNotFound) {
		return workers.Permanent(fmt.Errorf("case %s: %w", caseID, err))
	}
	if err != nil {
		return fmt.Errorf("get case status: %w", err)
	}
	if status == model.CaseStatusCleaned {
		log.Info().Msg("病例已清理，跳过")
		return nil
	}
	if err := casestate.AssertTransition(status, model.CaseStatusCleaned); err != nil {
		return err
	}

	msgs, err := c.messages.ListByCase(ctx, caseID)
	if err != nil {
		return fmt.Errorf("list case messages: %w", err)
	}

	var redacted, failed int
	for _, m := range msgs {
		payload := map[string]any{
			"room":        m.Room,
			"message_ref": m.MessageRef,
			"kind":        m.Kind,
		}
		if err := c.messenger.Redact(ctx, m.Room, m.MessageRef); err != nil {
			failed++
			payload["error"] = err.Error()
			c.audit.System(ctx, caseID, audit.EventMessageRedactionFailed, payload)
			log.Warn().Err(err).Str("room", m.Room).Str("message_ref", m.MessageRef).Msg("撤回消息失败")
			continue
		}
		redacted++
		c.audit.System(ctx, caseID, audit.EventMessageRedacted, payload)
	}

	ok, err := c.cases.MarkCleaned(ctx, caseID)
	if err != nil {
		return fmt.Errorf("mark cleaned: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: expected %s", casestate.ErrStaleStatus, model.CaseStatusCleanupRunning)
	}

	c.audit.System(ctx, caseID, audit.EventCaseTransition, map[string]any{
		"from_status": model.CaseStatusCleanupRunning,
		"to_status":   model.CaseStatusCleaned,
		"job_type":    job.JobType,
	})
	c.audit.System(ctx, caseID, audit.EventCleanupCompleted, map[string]any{
		"count_redacted_success": redacted,
		"count_redacted_failed":  failed,
	})
	log.Info().Int("redacted", redacted).Int("failed", failed).Msg("病例清理完成")
	return nil
}
