package dto

import "github.com/google/uuid"

// SignalRequest 外部确认信号
type SignalRequest struct {
	Room      string     `json:"room" binding:"required" example:"!room1:example.org"`
	TargetRef string     `json:"target_ref" binding:"required" example:"$final-reply-event"`
	Key       string     `json:"key" binding:"required" example:"👍"`
	Actor     string     `json:"actor" binding:"required" example:"@nurse:example.org"`
	EventRef  string     `json:"event_ref" example:"$reaction-event"`
	CaseID    *uuid.UUID `json:"case_id"`
}
