package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/model"
)

var (
	// ErrNotFound 记录不存在
	ErrNotFound = errors.New("record not found")

	// ErrJobNotRunning 作业不处于 running 状态或已被其他 worker 认领，无法完成/失败
	ErrJobNotRunning = errors.New("job is not running")
)

// notOwnedError 作业不是由 workerID 持有的 running 状态
func notOwnedError(id int64, status model.JobStatus, owner string) error {
	if status == model.JobStatusRunning {
		return fmt.Errorf("%w: job %d is claimed by %q", ErrJobNotRunning, id, owner)
	}
	return fmt.Errorf("%w: job %d is %s", ErrJobNotRunning, id, status)
}

// DefaultMaxAttempts 入队未指定 max_attempts 时的默认值
const DefaultMaxAttempts = 5

// Job 表示作业实体
type Job struct {
	ID          int64           `json:"id"`
	CaseID      *uuid.UUID      `json:"case_id,omitempty"`
	JobType     string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      model.JobStatus `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAfter    time.Time       `json:"run_after"`
	LastError   string          `json:"last_error,omitempty"`
	ClaimedBy   string          `json:"claimed_by,omitempty"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// EnqueueInput 入队参数
type EnqueueInput struct {
	CaseID      *uuid.UUID
	JobType     string
	Payload     json.RawMessage
	RunAfter    time.Time // 零值表示立即可认领
	MaxAttempts int       // 零值使用 DefaultMaxAttempts
}

// ListJobsFilter 作业列表查询过滤条件
type ListJobsFilter struct {
	Status  string
	JobType string
	CaseID  *uuid.UUID
	Limit   int
	Offset  int
}

// Case 表示病例实体
type Case struct {
	CaseID             uuid.UUID        `json:"case_id"`
	Status             model.CaseStatus `json:"status"`
	OriginRef          string           `json:"origin_ref"`
	FinalReplyRef      string           `json:"final_reply_ref,omitempty"`
	CleanupTriggeredAt *time.Time       `json:"cleanup_triggered_at,omitempty"`
	CleanupTriggeredBy string           `json:"cleanup_triggered_by,omitempty"`
	CleanupCompletedAt *time.Time       `json:"cleanup_completed_at,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// CreateCaseInput 创建病例参数
type CreateCaseInput struct {
	CaseID    uuid.UUID // 零值时自动生成
	Status    model.CaseStatus
	OriginRef string
}

// 审计事件发起方
const (
	ActorSystem = "system"
	ActorHuman  = "human"
	ActorBot    = "bot"
)

// AuditEvent 审计事件（只追加）
type AuditEvent struct {
	ID        int64           `json:"id"`
	CaseID    uuid.UUID       `json:"case_id"`
	ActorType string          `json:"actor_type"`
	ActorRef  string          `json:"actor_ref,omitempty"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// 病例消息类型
const (
	MessageKindRoom1Final       = "room1_final"
	MessageKindRoom2DecisionAck = "room2_decision_ack"
	MessageKindRoom3Request     = "room3_request"
	MessageKindRoom3Ack         = "bot_ack"
)

// CaseMessage 病例在外部频道发布过的消息（清理时撤回）
type CaseMessage struct {
	ID         int64     `json:"id"`
	CaseID     uuid.UUID `json:"case_id"`
	Room       string    `json:"room"`
	MessageRef string    `json:"message_ref"`
	Kind       string    `json:"kind"`
	CreatedAt  time.Time `json:"created_at"`
}

// JobStore 作业队列仓储接口
type JobStore interface {
	// Enqueue 新建 queued 作业
	Enqueue(ctx context.Context, in EnqueueInput) (*Job, error)

	// ClaimBatch 原子认领最多 limit 个到期作业并置为 running，按 run_after 升序
	ClaimBatch(ctx context.Context, workerID string, limit int, now time.Time) ([]Job, error)

	// Complete 标记完成；已完成的作业再次完成为 no-op。
	// 以下三个写操作只在作业仍由 workerID 认领时生效，否则返回 ErrJobNotRunning
	Complete(ctx context.Context, id int64, workerID string) error

	// Fail 记录一次失败：未达上限则按退避重新排队，否则置为 dead 并返回 exhausted=true
	Fail(ctx context.Context, id int64, workerID, errInfo string) (job *Job, exhausted bool, err error)

	// DeadLetter 不可重试失败，直接置为 dead
	DeadLetter(ctx context.Context, id int64, workerID, errInfo string) (*Job, error)

	// ReconcileRunning 启动回收：所有 running 作业恢复为 queued，attempts 不变
	ReconcileRunning(ctx context.Context) (int64, error)

	// HasActiveJob 病例是否存在指定类型的 queued/running 作业
	HasActiveJob(ctx context.Context, caseID uuid.UUID, jobType string) (bool, error)

	// Get 查询单个作业
	Get(ctx context.Context, id int64) (*Job, error)

	// List 查询作业列表
	List(ctx context.Context, f ListJobsFilter) ([]Job, error)

	// CountByStatus 按状态统计作业数量
	CountByStatus(ctx context.Context) (map[model.JobStatus]int, error)
}

// CaseStore 病例仓储接口
type CaseStore interface {
	// Create 创建病例
	Create(ctx context.Context, in CreateCaseInput) (*Case, error)

	// Get 查询病例
	Get(ctx context.Context, caseID uuid.UUID) (*Case, error)

	// GetStatus 查询病例当前状态
	GetStatus(ctx context.Context, caseID uuid.UUID) (model.CaseStatus, error)

	// GetByFinalReplyRef 根据最终回复消息引用查询病例
	GetByFinalReplyRef(ctx context.Context, ref string) (*Case, error)

	// SetStatus 条件更新状态（当前状态必须为 from），返回是否写入
	SetStatus(ctx context.Context, caseID uuid.UUID, from, to model.CaseStatus) (bool, error)

	// SetFinalReplyRef 记录最终回复消息引用
	SetFinalReplyRef(ctx context.Context, caseID uuid.UUID, ref string) error

	// MaybeTriggerCleanup CAS：仅第一个调用方把 cleanup_triggered_at 从 NULL 置为非空
	MaybeTriggerCleanup(ctx context.Context, caseID uuid.UUID, actor string) (bool, error)

	// MarkCleaned CLEANUP_RUNNING -> CLEANED 并记录完成时间
	MarkCleaned(ctx context.Context, caseID uuid.UUID) (bool, error)

	// ListByStatus 按状态查询病例
	ListByStatus(ctx context.Context, statuses []model.CaseStatus, limit int) ([]Case, error)
}

// AuditStore 审计事件仓储接口
type AuditStore interface {
	// Append 追加审计事件
	Append(ctx context.Context, e AuditEvent) error

	// ListByCase 按时间顺序查询病例的审计事件
	ListByCase(ctx context.Context, caseID uuid.UUID, limit int) ([]AuditEvent, error)
}

// MessageStore 病例消息仓储接口
type MessageStore interface {
	// Add 记录已发布消息
	Add(ctx context.Context, m CaseMessage) error

	// ListByCase 查询病例的全部消息
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]CaseMessage, error)

	// GetByRoomRef 按频道与消息引用查询
	GetByRoomRef(ctx context.Context, room, ref string) (*CaseMessage, error)

	// HasKind 病例在频道中是否已有指定类型的消息
	HasKind(ctx context.Context, caseID uuid.UUID, room, kind string) (bool, error)
}

// NormalizeLimit 统一分页上限
func NormalizeLimit(limit int) int {
	if limit <= 0 || limit > 200 {
		return 50
	}
	return limit
}

var (
	_ JobStore     = (*JobRepo)(nil)
	_ CaseStore    = (*CaseRepo)(nil)
	_ AuditStore   = (*AuditRepo)(nil)
	_ MessageStore = (*MessageRepo)(nil)
)
