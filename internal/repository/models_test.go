package repository

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAuditEventToModel_Defaults(t *testing.T) {
	m := AuditEventToModel(AuditEvent{CaseID: uuid.New(), EventType: "CASE_CREATED"})

	assert.Equal(t, ActorSystem, m.ActorType, "未指定发起方时默认为 system")
	assert.Equal(t, "{}", m.Payload, "空 payload 写入空对象")
	assert.Nil(t, m.ActorRef)
}

func TestAuditEventModel_ToAuditEvent(t *testing.T) {
	ref := "@doctor:example.org"
	m := AuditEventModel{
		ID:        7,
		CaseID:    uuid.New(),
		ActorType: ActorHuman,
		ActorRef:  &ref,
		EventType: "ROOM1_FINAL_THUMBS_UP_RECEIVED",
		Payload:   `{"key":"👍"}`,
	}

	e := m.ToAuditEvent()
	assert.Equal(t, ref, e.ActorRef)
	assert.JSONEq(t, `{"key":"👍"}`, string(e.Payload))
	assert.Equal(t, json.RawMessage(`{"key":"👍"}`), e.Payload)
}
