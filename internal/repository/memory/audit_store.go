package memory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/azhengyongqin/caseflow/internal/repository"
)

// AuditStore 进程内审计事件仓储
type AuditStore struct {
	mu     sync.RWMutex
	nextID int64
	events []repository.AuditEvent
	now    func() time.Time
}

func NewAuditStore(now func() time.Time) *AuditStore {
	if now == nil {
		now = time.Now
	}
	return &AuditStore{now: now}
}

func (s *AuditStore) Append(_ context.Context, e repository.AuditEvent) error {
	if e.EventType == "" {
		return errors.New("event_type 不能为空")
	}
	if e.ActorType == "" {
		e.ActorType = repository.ActorSystem
	}
	if len(e.Payload) == 0 {
		e.Payload = json.RawMessage(`{}`)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e.ID = s.nextID
	e.CreatedAt = s.now()
	e.Payload = append(json.RawMessage(nil), e.Payload...)
	s.events = append(s.events, e)
	return nil
}

func (s *AuditStore) ListByCase(_ context.Context, caseID uuid.UUID, limit int) ([]repository.AuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit = repository.NormalizeLimit(limit)
	out := []repository.AuditEvent{}
	for _, e := range s.events {
		if e.CaseID != caseID {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// EventTypes 返回病例的事件类型序列（便于断言）
func (s *AuditStore) EventTypes(caseID uuid.UUID) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []string{}
	for _, e := range s.events {
		if e.CaseID == caseID {
			out = append(out, e.EventType)
		}
	}
	return out
}

// MessageStore 进程内病例消息仓储
type MessageStore struct {
	mu     sync.RWMutex
	nextID int64
	items  []repository.CaseMessage
	now    func() time.Time
}

func NewMessageStore(now func() time.Time) *MessageStore {
	if now == nil {
		now = time.Now
	}
	return &MessageStore{now: now}
}

func (s *MessageStore) Add(_ context.Context, m repository.CaseMessage) error {
	if m.Room == "" || m.MessageRef == "" {
		return errors.New("room 与 message_ref 不能为空")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.items {
		if existing.Room == m.Room && existing.MessageRef == m.MessageRef {
			return nil
		}
	}
	s.nextID++
	m.ID = s.nextID
	m.CreatedAt = s.now()
	s.items = append(s.items, m)
	return nil
}

func (s *MessageStore) ListByCase(_ context.Context, caseID uuid.UUID) ([]repository.CaseMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []repository.CaseMessage{}
	for _, m := range s.items {
		if m.CaseID == caseID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MessageStore) GetByRoomRef(_ context.Context, room, ref string) (*repository.CaseMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.items {
		if m.Room == room && m.MessageRef == ref {
			out := m
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *MessageStore) HasKind(_ context.Context, caseID uuid.UUID, room, kind string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, m := range s.items {
		if m.CaseID == caseID && m.Room == room && m.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}
