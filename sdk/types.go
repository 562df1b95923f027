package sdk

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CreateCaseRequest 创建病例请求
type CreateCaseRequest struct {
	CaseID    *uuid.UUID `json:"case_id,omitempty"`
	Status    string     `json:"status,omitempty"`
	OriginRef string     `json:"origin_ref"`
}

// Case 病例
type Case struct {
	CaseID             uuid.UUID  `json:"case_id"`
	Status             string     `json:"status"`
	OriginRef          string     `json:"origin_ref"`
	FinalReplyRef      string     `json:"final_reply_ref,omitempty"`
	CleanupTriggeredAt *time.Time `json:"cleanup_triggered_at,omitempty"`
	CleanupTriggeredBy string     `json:"cleanup_triggered_by,omitempty"`
	CleanupCompletedAt *time.Time `json:"cleanup_completed_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TransitionResponse 状态迁移结果
type TransitionResponse struct {
	CaseID uuid.UUID `json:"case_id"`
	From   string    `json:"from"`
	To     string    `json:"to"`
}

// EnqueueJobRequest 作业入队请求
type EnqueueJobRequest struct {
	JobType      string          `json:"job_type"`
	CaseID       *uuid.UUID      `json:"case_id,omitempty"`
	Payload      json.RawMessage `json:"payload,omitempty"`
	MaxAttempts  int             `json:"max_attempts,omitempty"`
	DelaySeconds int             `json:"delay_seconds,omitempty"`
	RunAt        *time.Time      `json:"run_at,omitempty"`
	Unique       bool            `json:"unique,omitempty"`
}

// EnqueueJobResponse 作业入队结果
type EnqueueJobResponse struct {
	Enqueued bool `json:"enqueued"`
	Job      *Job `json:"job,omitempty"`
}

// Job 作业
type Job struct {
	ID          int64           `json:"id"`
	CaseID      *uuid.UUID      `json:"case_id,omitempty"`
	JobType     string          `json:"job_type"`
	Payload     json.RawMessage `json:"payload"`
	Status      string          `json:"status"`
	Attempts    int             `json:"attempts"`
	MaxAttempts int             `json:"max_attempts"`
	RunAfter    time.Time       `json:"run_after"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ListJobsFilter 作业列表过滤条件
type ListJobsFilter struct {
	Status  string
	JobType string
	CaseID  *uuid.UUID
	Limit   int
}

// JobStats 各状态作业数量
type JobStats struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

// SignalRequest 外部确认信号
type SignalRequest struct {
	Room      string     `json:"room"`
	TargetRef string     `json:"target_ref"`
	Key       string     `json:"key"`
	Actor     string     `json:"actor"`
	EventRef  string     `json:"event_ref,omitempty"`
	CaseID    *uuid.UUID `json:"case_id,omitempty"`
}

// SignalResult 信号处理结果；Processed=false 时 Reason 说明忽略原因
type SignalResult struct {
	Processed bool      `json:"processed"`
	Reason    string    `json:"reason,omitempty"`
	CaseID    uuid.UUID `json:"case_id,omitempty"`
}
