package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// CaseStore 进程内病例仓储
type CaseStore struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*repository.Case // key: case_id
	now   func() time.Time
}

// NewCaseStore 创建内存病例仓储；now 为 nil 时使用 time.Now
func NewCaseStore(now func() time.Time) *CaseStore {
	if now == nil {
		now = time.Now
	}
	return &CaseStore{
		items: map[uuid.UUID]*repository.Case{},
		now:   now,
	}
}

func (s *CaseStore) Create(_ context.Context, in repository.CreateCaseInput) (*repository.Case, error) {
	if in.CaseID == uuid.Nil {
		in.CaseID = uuid.New()
	}
	if in.Status == "" {
		in.Status = model.CaseStatusNew
	}
	if !in.Status.Valid() {
		return nil, errors.New("无效的病例状态: " + string(in.Status))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.items[in.CaseID]; exists {
		return nil, errors.New("病例已存在")
	}
	now := s.now()
	c := &repository.Case{
		CaseID:    in.CaseID,
		Status:    in.Status,
		OriginRef: in.OriginRef,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[c.CaseID] = c
	return cloneCase(c), nil
}

func (s *CaseStore) Get(_ context.Context, caseID uuid.UUID) (*repository.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[caseID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneCase(c), nil
}

func (s *CaseStore) GetStatus(_ context.Context, caseID uuid.UUID) (model.CaseStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.items[caseID]
	if !ok {
		return "", repository.ErrNotFound
	}
	return c.Status, nil
}

func (s *CaseStore) GetByFinalReplyRef(_ context.Context, ref string) (*repository.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ref == "" {
		return nil, repository.ErrNotFound
	}
	for _, c := range s.items {
		if c.FinalReplyRef == ref {
			return cloneCase(c), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *CaseStore) SetStatus(_ context.Context, caseID uuid.UUID, from, to model.CaseStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[caseID]
	if !ok || c.Status != from {
		return false, nil
	}
	c.Status = to
	c.UpdatedAt = s.now()
	return true, nil
}

func (s *CaseStore) SetFinalReplyRef(_ context.Context, caseID uuid.UUID, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[caseID]
	if !ok {
		return repository.ErrNotFound
	}
	c.FinalReplyRef = ref
	c.UpdatedAt = s.now()
	return nil
}

func (s *CaseStore) MaybeTriggerCleanup(_ context.Context, caseID uuid.UUID, actor string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[caseID]
	if !ok || c.Status != model.CaseStatusWaitR1CleanupThumbs || c.CleanupTriggeredAt != nil {
		return false, nil
	}
	now := s.now()
	c.CleanupTriggeredAt = &now
	c.CleanupTriggeredBy = actor
	c.Status = model.CaseStatusCleanupRunning
	c.UpdatedAt = now
	return true, nil
}

func (s *CaseStore) MarkCleaned(_ context.Context, caseID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.items[caseID]
	if !ok || c.Status != model.CaseStatusCleanupRunning {
		return false, nil
	}
	now := s.now()
	c.Status = model.CaseStatusCleaned
	c.CleanupCompletedAt = &now
	c.UpdatedAt = now
	return true, nil
}

func (s *CaseStore) ListByStatus(_ context.Context, statuses []model.CaseStatus, limit int) ([]repository.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[model.CaseStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	out := []repository.Case{}
	for _, c := range s.items {
		if want[c.Status] {
			out = append(out, *cloneCase(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if limit = repository.NormalizeLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneCase(c *repository.Case) *repository.Case {
	out := *c
	if c.CleanupTriggeredAt != nil {
		t := *c.CleanupTriggeredAt
		out.CleanupTriggeredAt = &t
	}
	if c.CleanupCompletedAt != nil {
		t := *c.CleanupCompletedAt
		out.CleanupCompletedAt = &t
	}
	return &out
}
