package repository

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditEventModel GORM 模型 - 对应 case_events 表
type AuditEventModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CaseID    uuid.UUID `gorm:"column:case_id;type:uuid;not null;index:idx_case_events_case_id"`
	ActorType string    `gorm:"column:actor_type;type:text;not null"`
	ActorRef  *string   `gorm:"column:actor_ref;type:text"`
	EventType string    `gorm:"column:event_type;type:text;not null"`
	Payload   string    `gorm:"column:payload;type:jsonb;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (AuditEventModel) TableName() string { return "case_events" }

// ToAuditEvent 转换为 AuditEvent 实体
func (m *AuditEventModel) ToAuditEvent() AuditEvent {
	e := AuditEvent{
		ID:        m.ID,
		CaseID:    m.CaseID,
		ActorType: m.ActorType,
		EventType: m.EventType,
		CreatedAt: m.CreatedAt,
	}
	if m.ActorRef != nil {
		e.ActorRef = *m.ActorRef
	}
	if m.Payload != "" {
		e.Payload = json.RawMessage(m.Payload)
	}
	return e
}

// AuditEventToModel 从 AuditEvent 实体创建模型
func AuditEventToModel(e AuditEvent) AuditEventModel {
	m := AuditEventModel{
		ID:        e.ID,
		CaseID:    e.CaseID,
		ActorType: e.ActorType,
		EventType: e.EventType,
		Payload:   "{}",
		CreatedAt: e.CreatedAt,
	}
	if m.ActorType == "" {
		m.ActorType = ActorSystem
	}
	if e.ActorRef != "" {
		m.ActorRef = &e.ActorRef
	}
	if len(e.Payload) > 0 {
		m.Payload = string(e.Payload)
	}
	return m
}

// CaseMessageModel GORM 模型 - 对应 case_messages 表
type CaseMessageModel struct {
	ID         int64     `gorm:"primaryKey;autoIncrement;column:id"`
	CaseID     uuid.UUID `gorm:"column:case_id;type:uuid;not null;index:idx_case_messages_case_id"`
	Room       string    `gorm:"column:room;type:text;not null;uniqueIndex:idx_case_messages_room_ref"`
	MessageRef string    `gorm:"column:message_ref;type:text;not null;uniqueIndex:idx_case_messages_room_ref"`
	Kind       string    `gorm:"column:kind;type:text;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}

// TableName 指定表名
func (CaseMessageModel) TableName() string { return "case_messages" }

// ToCaseMessage 转换为 CaseMessage 实体
func (m *CaseMessageModel) ToCaseMessage() CaseMessage {
	return CaseMessage{
		ID:         m.ID,
		CaseID:     m.CaseID,
		Room:       m.Room,
		MessageRef: m.MessageRef,
		Kind:       m.Kind,
		CreatedAt:  m.CreatedAt,
	}
}

// CaseMessageToModel 从 CaseMessage 实体创建模型
func CaseMessageToModel(c CaseMessage) CaseMessageModel {
	return CaseMessageModel{
		ID:         c.ID,
		CaseID:     c.CaseID,
		Room:       c.Room,
		MessageRef: c.MessageRef,
		Kind:       c.Kind,
		CreatedAt:  c.CreatedAt,
	}
}
