package dto

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CreateJobRequest 入队请求
type CreateJobRequest struct {
	JobType      string          `json:"job_type" binding:"required" example:"post_room3_request"`
	CaseID       *uuid.UUID      `json:"case_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Payload      json.RawMessage `json:"payload" swaggertype:"object"`
	MaxAttempts  int             `json:"max_attempts" example:"5"`
	DelaySeconds int             `json:"delay_seconds" example:"0"`
	RunAt        *time.Time      `json:"run_at"`
	Unique       bool            `json:"unique" example:"true"` // 同一病例同一类型已有活跃作业时不再入队
}

// CreateJobResponse 入队响应
type CreateJobResponse struct {
	Enqueued bool `json:"enqueued" example:"true"`
	Job      any  `json:"job,omitempty"`
}

// JobStatsResponse 作业状态统计
type JobStatsResponse struct {
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total" example:"42"`
}
