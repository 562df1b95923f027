// Package audit 记录病例审计事件。事件只追加，写入失败只记日志，不影响业务流程。
package audit

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// 审计事件类型
const (
	EventCaseCreated    = "CASE_CREATED"
	EventCaseTransition = "CASE_STATUS_CHANGED"

	EventJobMaxRetriesExceeded       = "JOB_MAX_RETRIES_EXCEEDED"
	EventJobDeadLettered             = "JOB_DEAD_LETTERED"
	EventCaseFailedMaxRetries        = "CASE_FAILED_MAX_RETRIES"
	EventCaseFailureNotApplied       = "CASE_FAILURE_NOT_APPLIED"
	EventJobEnqueuedPostRoom1Failure = "JOB_ENQUEUED_POST_ROOM1_FAILURE"
	EventJobEnqueuedByRecovery       = "JOB_ENQUEUED_BY_RECOVERY"
	EventRoom1FinalReplyPosted       = "ROOM1_FINAL_REPLY_POSTED"
	EventRoom3RequestPosted          = "ROOM3_REQUEST_POSTED"
	EventRoom1ThumbsUpReceived       = "ROOM1_FINAL_THUMBS_UP_RECEIVED"
	EventRoom1ThumbsUpWrongState     = "ROOM1_FINAL_THUMBS_UP_IGNORED_WRONG_STATE"
	EventRoom1ThumbsUpAlreadyTrigger = "ROOM1_FINAL_THUMBS_UP_IGNORED_ALREADY_TRIGGERED"
	EventRoom1ThumbsUpTriggerCleanup = "ROOM1_FINAL_THUMBS_UP_TRIGGERED_CLEANUP"
	EventRoom2AckThumbsUpReceived    = "ROOM2_ACK_THUMBS_UP_RECEIVED"
	EventRoom3AckThumbsUpReceived    = "ROOM3_ACK_THUMBS_UP_RECEIVED"
	EventMessageRedacted             = "MATRIX_EVENT_REDACTED"
	EventMessageRedactionFailed      = "MATRIX_EVENT_REDACTION_FAILED"
	EventCleanupCompleted            = "CLEANUP_COMPLETED"
)

// Recorder 审计记录器
type Recorder struct {
	store repository.AuditStore
	log   zerolog.Logger
}

func NewRecorder(store repository.AuditStore, log zerolog.Logger) *Recorder {
	return &Recorder{store: store, log: log}
}

// Entry 一条待写入的审计事件
type Entry struct {
	CaseID    uuid.UUID
	ActorType string
	ActorRef  string
	EventType string
	Payload   any
}

// Record 写入审计事件；失败返回错误并记录日志
func (r *Recorder) Record(ctx context.Context, e Entry) error {
	var payload json.RawMessage
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			r.log.Error().Err(err).Str("event_type", e.EventType).Msg("审计事件序列化失败")
			return err
		}
		payload = b
	}

	err := r.store.Append(ctx, repository.AuditEvent{
		CaseID:    e.CaseID,
		ActorType: e.ActorType,
		ActorRef:  e.ActorRef,
		EventType: e.EventType,
		Payload:   payload,
	})
	if err != nil {
		metrics.RecordError("audit", "append")
		r.log.Error().Err(err).
			Str("case_id", e.CaseID.String()).
			Str("event_type", e.EventType).
			Msg("写入审计事件失败")
	}
	return err
}

// System 以 system 身份记录事件，忽略错误（已记日志）
func (r *Recorder) System(ctx context.Context, caseID uuid.UUID, eventType string, payload any) {
	_ = r.Record(ctx, Entry{
		CaseID:    caseID,
		ActorType: repository.ActorSystem,
		EventType: eventType,
		Payload:   payload,
	})
}
