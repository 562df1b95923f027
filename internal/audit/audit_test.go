package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/repository"
	"github.com/azhengyongqin/caseflow/internal/repository/memory"
)

type failingStore struct{}

func (failingStore) Append(context.Context, repository.AuditEvent) error {
	return errors.New("db down")
}

func (failingStore) ListByCase(context.Context, uuid.UUID, int) ([]repository.AuditEvent, error) {
	return nil, nil
}

func TestRecorder_Record(t *testing.T) {
	store := memory.NewAuditStore(time.Now)
	r := NewRecorder(store, zerolog.Nop())
	ctx := context.Background()
	caseID := uuid.New()

	err := r.Record(ctx, Entry{
		CaseID:    caseID,
		ActorType: repository.ActorHuman,
		ActorRef:  "@alice",
		EventType: EventRoom1ThumbsUpReceived,
		Payload:   map[string]any{"target_ref": "$final"},
	})
	require.NoError(t, err)

	events, err := store.ListByCase(ctx, caseID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, repository.ActorHuman, events[0].ActorType)
	assert.Equal(t, "@alice", events[0].ActorRef)
	assert.JSONEq(t, `{"target_ref":"$final"}`, string(events[0].Payload))
}

func TestRecorder_SystemDefaults(t *testing.T) {
	store := memory.NewAuditStore(time.Now)
	r := NewRecorder(store, zerolog.Nop())
	caseID := uuid.New()

	r.System(context.Background(), caseID, EventCaseCreated, nil)

	events, err := store.ListByCase(context.Background(), caseID, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, repository.ActorSystem, events[0].ActorType)
	assert.Empty(t, events[0].ActorRef)
	assert.JSONEq(t, `{}`, string(events[0].Payload), "空载荷写入为 {}")
}

func TestRecorder_Errors(t *testing.T) {
	r := NewRecorder(failingStore{}, zerolog.Nop())

	err := r.Record(context.Background(), Entry{CaseID: uuid.New(), EventType: EventCaseCreated})
	assert.EqualError(t, err, "db down")

	// 无法序列化的载荷
	err = r.Record(context.Background(), Entry{CaseID: uuid.New(), EventType: EventCaseCreated, Payload: make(chan int)})
	assert.Error(t, err)

	// System 忽略错误
	assert.NotPanics(t, func() {
		r.System(context.Background(), uuid.New(), EventCaseCreated, nil)
	})
}
