package dto

import (
	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/model"
)

// CreateCaseRequest 创建病例请求
type CreateCaseRequest struct {
	CaseID    *uuid.UUID `json:"case_id" example:"550e8400-e29b-41d4-a716-446655440000"` // 可选，默认生成
	Status    string     `json:"status" example:"NEW"`                                   // 可选，默认 NEW
	OriginRef string     `json:"origin_ref" binding:"required" example:"$intake-event-id"`
}

// TransitionRequest 病例状态迁移请求
type TransitionRequest struct {
	To    string `json:"to" binding:"required" example:"WAIT_DOCTOR"`
	Actor string `json:"actor" example:"@operator"` // 可选，记录到审计
}

// TransitionResponse 病例状态迁移响应
type TransitionResponse struct {
	CaseID uuid.UUID        `json:"case_id"`
	From   model.CaseStatus `json:"from" example:"R2_POST_WIDGET"`
	To     model.CaseStatus `json:"to" example:"WAIT_DOCTOR"`
}
