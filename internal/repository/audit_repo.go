package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuditRepo 基于 GORM 的审计事件仓储
type AuditRepo struct {
	db *gorm.DB
}

func NewAuditRepo(db *gorm.DB) *AuditRepo {
	return &AuditRepo{db: db}
}

func (r *AuditRepo) Append(ctx context.Context, e AuditEvent) error {
	if e.EventType == "" {
		return errors.New("event_type 不能为空")
	}
	m := AuditEventToModel(e)
	return r.db.WithContext(ctx).Create(&m).Error
}

func (r *AuditRepo) ListByCase(ctx context.Context, caseID uuid.UUID, limit int) ([]AuditEvent, error) {
	var ms []AuditEventModel
	err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("id asc").
		Limit(NormalizeLimit(limit)).
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	out := make([]AuditEvent, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToAuditEvent())
	}
	return out, nil
}

// MessageRepo 基于 GORM 的病例消息仓储
type MessageRepo struct {
	db *gorm.DB
}

func NewMessageRepo(db *gorm.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

// Add 同一频道的同一消息只记录一次
func (r *MessageRepo) Add(ctx context.Context, m CaseMessage) error {
	if m.Room == "" || m.MessageRef == "" {
		return errors.New("room 与 message_ref 不能为空")
	}
	model := CaseMessageToModel(m)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "room"}, {Name: "message_ref"}},
			DoNothing: true,
		}).
		Create(&model).Error
}

func (r *MessageRepo) ListByCase(ctx context.Context, caseID uuid.UUID) ([]CaseMessage, error) {
	var ms []CaseMessageModel
	err := r.db.WithContext(ctx).
		Where("case_id = ?", caseID).
		Order("id asc").
		Find(&ms).Error
	if err != nil {
		return nil, err
	}

	out := make([]CaseMessage, 0, len(ms))
	for i := range ms {
		out = append(out, ms[i].ToCaseMessage())
	}
	return out, nil
}

func (r *MessageRepo) GetByRoomRef(ctx context.Context, room, ref string) (*CaseMessage, error) {
	var m CaseMessageModel
	err := r.db.WithContext(ctx).
		Where("room = ? and message_ref = ?", room, ref).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := m.ToCaseMessage()
	return &out, nil
}

func (r *MessageRepo) HasKind(ctx context.Context, caseID uuid.UUID, room, kind string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&CaseMessageModel{}).
		Where("case_id = ? and room = ? and kind = ?", caseID, room, kind).
		Count(&n).Error
	return n > 0, err
}
