package notify

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const confirmHint = "请回复 👍 确认知悉，确认后将清理本病例的相关消息。"

// FailurePayload post_room1_final_failure 作业载荷
type FailurePayload struct {
	CauseJobID   int64  `json:"cause_job_id,omitempty"`
	CauseJobType string `json:"cause_job_type,omitempty"`
	Reason       string `json:"reason,omitempty"`
}

// DeniedPayload post_room1_final_denied 作业载荷
type DeniedPayload struct {
	Reason string `json:"reason,omitempty"`
}

// AcceptedPayload post_room1_final_accepted 作业载荷
type AcceptedPayload struct {
	AppointmentAt string `json:"appointment_at,omitempty"`
	Location      string `json:"location,omitempty"`
	Instructions  string `json:"instructions,omitempty"`
}

// Room3RequestPayload post_room3_request 作业载荷
type Room3RequestPayload struct {
	RequestedExam string `json:"requested_exam,omitempty"`
}

func caseLine(caseID uuid.UUID) string {
	return "病例: " + caseID.String()
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// FailureMessage 处理失败的最终回复
func FailureMessage(caseID uuid.UUID, p FailurePayload) string {
	var b strings.Builder
	b.WriteString("⚠️ 处理失败\n")
	b.WriteString(caseLine(caseID) + "\n")
	if p.CauseJobType != "" {
		fmt.Fprintf(&b, "失败步骤: %s\n", p.CauseJobType)
	}
	fmt.Fprintf(&b, "原因: %s\n\n", orDefault(p.Reason, "自动处理多次重试后仍未成功"))
	b.WriteString(confirmHint)
	return b.String()
}

// DeniedMessage 申请被拒绝的最终回复
func DeniedMessage(caseID uuid.UUID, p DeniedPayload) string {
	return fmt.Sprintf("❌ 已拒绝\n%s\n原因: %s\n\n%s",
		caseLine(caseID), orDefault(p.Reason, "未提供"), confirmHint)
}

// AcceptedMessage 申请已接受并完成预约的最终回复
func AcceptedMessage(caseID uuid.UUID, p AcceptedPayload) string {
	return fmt.Sprintf("✅ 已接受\n%s\n预约时间: %s\n地点: %s\n说明: %s\n\n%s",
		caseLine(caseID),
		orDefault(p.AppointmentAt, "待定"),
		orDefault(p.Location, "待定"),
		orDefault(p.Instructions, "无"),
		confirmHint)
}

// Room3RequestMessage 预约频道的预约申请
func Room3RequestMessage(caseID uuid.UUID, p Room3RequestPayload) string {
	return fmt.Sprintf("预约申请\n%s\n检查项目: %s\n\n请直接回复本消息，每行一个字段：\n状态: 确认|拒绝\n时间: DD-MM-YYYY HH:MM\n地点:\n说明:\n原因: （拒绝时填写）",
		caseLine(caseID), orDefault(p.RequestedExam, "未提供"))
}

// Room3AckMessage 预约申请登记回执，作为确认信号的目标
func Room3AckMessage(caseID uuid.UUID) string {
	return fmt.Sprintf("预约申请已登记\n%s\n请回复 👍 确认。", caseLine(caseID))
}
