package memory

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/repository"
)

func TestAuditStore(t *testing.T) {
	s := NewAuditStore(nil)
	ctx := context.Background()
	caseID := uuid.New()

	require.NoError(t, s.Append(ctx, repository.AuditEvent{CaseID: caseID, EventType: "A"}))
	require.NoError(t, s.Append(ctx, repository.AuditEvent{CaseID: uuid.New(), EventType: "OTHER"}))
	require.NoError(t, s.Append(ctx, repository.AuditEvent{
		CaseID:    caseID,
		ActorType: repository.ActorHuman,
		ActorRef:  "@doctor",
		EventType: "B",
		Payload:   json.RawMessage(`{"k":1}`),
	}))
	assert.Error(t, s.Append(ctx, repository.AuditEvent{CaseID: caseID}), "event_type 为空应该失败")

	events, err := s.ListByCase(ctx, caseID, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, repository.ActorSystem, events[0].ActorType)
	assert.JSONEq(t, `{}`, string(events[0].Payload))
	assert.Equal(t, "@doctor", events[1].ActorRef)
	assert.Less(t, events[0].ID, events[1].ID)

	assert.Equal(t, []string{"A", "B"}, s.EventTypes(caseID))
}

func TestMessageStoreDedupes(t *testing.T) {
	s := NewMessageStore(nil)
	ctx := context.Background()
	caseID := uuid.New()

	msg := repository.CaseMessage{CaseID: caseID, Room: "room1", MessageRef: "$m1", Kind: "final_reply"}
	require.NoError(t, s.Add(ctx, msg))
	require.NoError(t, s.Add(ctx, msg), "重复记录应该被忽略")
	require.NoError(t, s.Add(ctx, repository.CaseMessage{CaseID: caseID, Room: "room2", MessageRef: "$m1"}))
	assert.Error(t, s.Add(ctx, repository.CaseMessage{CaseID: caseID, Room: "room1"}))

	got, err := s.ListByCase(ctx, caseID)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestMessageStoreLookup(t *testing.T) {
	s := NewMessageStore(nil)
	ctx := context.Background()
	caseID := uuid.New()

	require.NoError(t, s.Add(ctx, repository.CaseMessage{CaseID: caseID, Room: "room3", MessageRef: "$ack", Kind: repository.MessageKindRoom3Ack}))

	got, err := s.GetByRoomRef(ctx, "room3", "$ack")
	require.NoError(t, err)
	assert.Equal(t, caseID, got.CaseID)
	assert.Equal(t, repository.MessageKindRoom3Ack, got.Kind)

	_, err = s.GetByRoomRef(ctx, "room2", "$ack")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	ok, err := s.HasKind(ctx, caseID, "room3", repository.MessageKindRoom3Ack)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasKind(ctx, caseID, "room3", repository.MessageKindRoom3Request)
	require.NoError(t, err)
	assert.False(t, ok)
}
