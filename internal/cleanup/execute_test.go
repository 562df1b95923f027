package cleanup

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
	workers "github.com/azhengyongqin/caseflow/internal/worker"
)

func cleanupJob(caseID uuid.UUID) *repository.Job {
	return &repository.Job{ID: 7, CaseID: &caseID, JobType: model.JobTypeExecuteCleanup, Status: model.JobStatusRunning}
}

func TestExecuteCleanup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := f.waitingCase(t, "$final")
	for _, m := range []repository.CaseMessage{
		{CaseID: c.CaseID, Room: testRooms.Room3, MessageRef: "$req", Kind: repository.MessageKindRoom3Request},
		{CaseID: c.CaseID, Room: testRooms.Room3, MessageRef: "$ack", Kind: repository.MessageKindRoom3Ack},
	} {
		require.NoError(t, f.stores.Messages.Add(ctx, m))
	}
	f.redacts.failRefs["$ack"] = true

	won, err := f.trigger.MaybeTrigger(ctx, c.CaseID, "@alice")
	require.NoError(t, err)
	require.True(t, won)

	res := f.cleaner.ExecuteCleanup(ctx, cleanupJob(c.CaseID))
	require.Equal(t, workers.OutcomeSuccess, res.Outcome, "应该成功: %v", res.Err)

	assert.ElementsMatch(t, []string{"$final", "$req"}, f.redacts.redacted)

	got, err := f.stores.Cases.Get(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCleaned, got.Status)
	assert.NotNil(t, got.CleanupCompletedAt)

	events, err := f.stores.Audit.ListByCase(ctx, c.CaseID, 50)
	require.NoError(t, err)
	counts := map[string]int{}
	var completed repository.AuditEvent
	for _, e := range events {
		counts[e.EventType]++
		if e.EventType == audit.EventCleanupCompleted {
			completed = e
		}
	}
	assert.Equal(t, 2, counts[audit.EventMessageRedacted])
	assert.Equal(t, 1, counts[audit.EventMessageRedactionFailed])
	require.Equal(t, 1, counts[audit.EventCleanupCompleted])

	var payload map[string]int
	require.NoError(t, json.Unmarshal(completed.Payload, &payload))
	assert.Equal(t, 2, payload["count_redacted_success"])
	assert.Equal(t, 1, payload["count_redacted_failed"])

	// 重复执行直接成功，不再撤回
	res = f.cleaner.ExecuteCleanup(ctx, cleanupJob(c.CaseID))
	assert.Equal(t, workers.OutcomeSuccess, res.Outcome)
	assert.Len(t, f.redacts.redacted, 2)
}

func TestExecuteCleanup_WrongStatusIsFatal(t *testing.T) {
	f := newFixture(t, nil)
	c := f.waitingCase(t, "$final")

	res := f.cleaner.ExecuteCleanup(context.Background(), cleanupJob(c.CaseID))
	assert.Equal(t, workers.OutcomeFatal, res.Outcome, "未触发清理的病例不能执行清理")
	assert.Empty(t, f.redacts.redacted)
}

func TestExecuteCleanup_MissingCase(t *testing.T) {
	f := newFixture(t, nil)

	res := f.cleaner.ExecuteCleanup(context.Background(), cleanupJob(uuid.New()))
	assert.Equal(t, workers.OutcomeFatal, res.Outcome)

	res = f.cleaner.ExecuteCleanup(context.Background(), &repository.Job{ID: 1, JobType: model.JobTypeExecuteCleanup})
	assert.Equal(t, workers.OutcomeFatal, res.Outcome)
}

func TestCleaner_Register(t *testing.T) {
	f := newFixture(t, nil)
	reg := workers.NewRegistry()
	require.NoError(t, f.cleaner.Register(reg))

	_, ok := reg.Get(model.JobTypeExecuteCleanup)
	assert.True(t, ok)
}
