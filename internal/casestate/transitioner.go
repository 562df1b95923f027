package casestate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/model"
)

// StatusStore 病例状态读写端口
type StatusStore interface {
	// GetStatus 读取病例当前状态
	GetStatus(ctx context.Context, caseID uuid.UUID) (model.CaseStatus, error)

	// SetStatus 条件写入：仅当当前状态仍为 from 时改为 to，返回是否写入
	SetStatus(ctx context.Context, caseID uuid.UUID, from, to model.CaseStatus) (bool, error)
}

// Transitioner 经过迁移校验后再持久化状态
type Transitioner struct {
	store StatusStore
}

// NewTransitioner 创建 Transitioner
func NewTransitioner(store StatusStore) *Transitioner {
	return &Transitioner{store: store}
}

// Transition 读取当前状态、校验迁移并以条件更新写入新状态，返回迁移前的状态。
// 校验与写入之间若状态被并发修改，返回 ErrStaleStatus。
func (t *Transitioner) Transition(ctx context.Context, caseID uuid.UUID, to model.CaseStatus) (model.CaseStatus, error) {
	from, err := t.store.GetStatus(ctx, caseID)
	if err != nil {
		return "", fmt.Errorf("get case status: %w", err)
	}
	if err := t.TransitionFrom(ctx, caseID, from, to); err != nil {
		return from, err
	}
	return from, nil
}

// TransitionFrom 在调用方已知当前状态时使用
func (t *Transitioner) TransitionFrom(ctx context.Context, caseID uuid.UUID, from, to model.CaseStatus) error {
	if err := AssertTransition(from, to); err != nil {
		metrics.RecordGuardViolation(string(from), string(to))
		return err
	}
	ok, err := t.store.SetStatus(ctx, caseID, from, to)
	if err != nil {
		return fmt.Errorf("set case status: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: expected %s", ErrStaleStatus, from)
	}
	return nil
}
