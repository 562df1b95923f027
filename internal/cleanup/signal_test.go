package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

func TestIsThumbsUp(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"👍", true},
		{"👍\uFE0F", true},
		{" ✅ ", true},
		{"✅\uFE0E", true},
		{"👎", false},
		{"+1", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsThumbsUp(tt.key), "key=%q", tt.key)
	}
}

func TestOnExternalSignal_PrimaryRoomTriggersCleanup(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := f.waitingCase(t, "$final")

	res, err := f.signals.OnExternalSignal(ctx, Signal{Room: testRooms.Room1, TargetRef: "$final", Key: "👍\uFE0F", Actor: "@alice"})
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, c.CaseID, res.CaseID)

	status, err := f.stores.Cases.GetStatus(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCleanupRunning, status)
	assert.Len(t, f.cleanupJobs(t), 1)

	// 清理开始后的重复信号只记审计
	res, err = f.signals.OnExternalSignal(ctx, Signal{Room: testRooms.Room1, TargetRef: "$final", Key: "👍", Actor: "@bob"})
	require.NoError(t, err)
	assert.False(t, res.Processed)
	assert.Equal(t, ReasonWrongState, res.Reason)
	assert.Len(t, f.cleanupJobs(t), 1)

	assert.Equal(t, []string{
		audit.EventRoom1ThumbsUpReceived,
		audit.EventRoom1ThumbsUpTriggerCleanup,
		audit.EventRoom1ThumbsUpReceived,
		audit.EventRoom1ThumbsUpWrongState,
	}, f.stores.Audit.EventTypes(c.CaseID))

	events, err := f.stores.Audit.ListByCase(ctx, c.CaseID, 10)
	require.NoError(t, err)
	assert.Equal(t, repository.ActorHuman, events[0].ActorType)
	assert.Equal(t, "@alice", events[0].ActorRef)
}

func TestOnExternalSignal_ConcurrentDuplicates(t *testing.T) {
	f := newFixture(t, nil)
	c := f.waitingCase(t, "$final")

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		reasons = map[string]int{}
	)
	start := make(chan struct{})
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, err := f.signals.OnExternalSignal(context.Background(), Signal{
				Room: testRooms.Room1, TargetRef: "$final", Key: "👍", Actor: uuid.NewString(),
			})
			assert.NoError(t, err)
			mu.Lock()
			if res.Processed {
				reasons["processed"]++
			} else {
				reasons[res.Reason]++
			}
			mu.Unlock()
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, reasons["processed"], "只能有一个信号触发清理")
	assert.Equal(t, 19, reasons[ReasonWrongState]+reasons[ReasonAlreadyTriggered])
	assert.Len(t, f.cleanupJobs(t), 1)

	got, err := f.stores.Cases.Get(context.Background(), c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCleanupRunning, got.Status)
}

func TestOnExternalSignal_Ignored(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := f.waitingCase(t, "$final")
	other := uuid.New()

	tests := []struct {
		name   string
		signal Signal
		reason string
	}{
		{"非确认回应", Signal{Room: testRooms.Room1, TargetRef: "$final", Key: "👎"}, ReasonNotThumbsUp},
		{"未知频道", Signal{Room: "!elsewhere", TargetRef: "$final", Key: "👍"}, ReasonUnknownRoom},
		{"不是最终回复", Signal{Room: testRooms.Room1, TargetRef: "$random", Key: "👍"}, ReasonNotFinalReplyTarget},
		{"病例不匹配", Signal{Room: testRooms.Room1, TargetRef: "$final", Key: "👍", CaseID: &other}, ReasonNotFinalReplyTarget},
		{"决策频道非回执", Signal{Room: testRooms.Room2, TargetRef: "$final", Key: "👍"}, ReasonNotAckTarget},
		{"预约频道未知消息", Signal{Room: testRooms.Room3, TargetRef: "$missing", Key: "✅"}, ReasonNotAckTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.signals.OnExternalSignal(ctx, tt.signal)
			require.NoError(t, err)
			assert.False(t, res.Processed)
			assert.Equal(t, tt.reason, res.Reason)
		})
	}

	status, err := f.stores.Cases.GetStatus(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusWaitR1CleanupThumbs, status, "被忽略的信号不能改变状态")
	assert.Empty(t, f.stores.Audit.EventTypes(c.CaseID))
}

func TestOnExternalSignal_AckRooms(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	caseID := uuid.New()

	require.NoError(t, f.stores.Messages.Add(ctx, repository.CaseMessage{CaseID: caseID, Room: testRooms.Room2, MessageRef: "$decision-ack", Kind: repository.MessageKindRoom2DecisionAck}))
	require.NoError(t, f.stores.Messages.Add(ctx, repository.CaseMessage{CaseID: caseID, Room: testRooms.Room3, MessageRef: "$bot-ack", Kind: repository.MessageKindRoom3Ack}))
	require.NoError(t, f.stores.Messages.Add(ctx, repository.CaseMessage{CaseID: caseID, Room: testRooms.Room3, MessageRef: "$request", Kind: repository.MessageKindRoom3Request}))

	res, err := f.signals.OnExternalSignal(ctx, Signal{Room: testRooms.Room2, TargetRef: "$decision-ack", Key: "👍", Actor: "@doctor"})
	require.NoError(t, err)
	assert.True(t, res.Processed)
	assert.Equal(t, caseID, res.CaseID)

	res, err = f.signals.OnExternalSignal(ctx, Signal{Room: testRooms.Room3, TargetRef: "$bot-ack", Key: "✅", Actor: "@scheduler"})
	require.NoError(t, err)
	assert.True(t, res.Processed)

	res, err = f.signals.OnExternalSignal(ctx, Signal{Room: testRooms.Room3, TargetRef: "$request", Key: "👍", Actor: "@scheduler"})
	require.NoError(t, err)
	assert.Equal(t, ReasonNotAckTarget, res.Reason, "预约申请本身不是回执")

	assert.Equal(t, []string{audit.EventRoom2AckThumbsUpReceived, audit.EventRoom3AckThumbsUpReceived},
		f.stores.Audit.EventTypes(caseID))
	assert.Empty(t, f.cleanupJobs(t), "回执确认不会触发清理")
}

func TestOnExternalSignal_Dedupe(t *testing.T) {
	d := &mapDeduper{}
	f := newFixture(t, d)
	ctx := context.Background()
	c := f.waitingCase(t, "$final")
	s := Signal{Room: testRooms.Room1, TargetRef: "$final", Key: "👍", Actor: "@alice"}

	res, err := f.signals.OnExternalSignal(ctx, s)
	require.NoError(t, err)
	assert.True(t, res.Processed)

	res, err = f.signals.OnExternalSignal(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, ReasonDuplicate, res.Reason)
	assert.Len(t, f.stores.Audit.EventTypes(c.CaseID), 2, "重复信号不应写审计")

	// 去重器故障时继续处理，由状态检查兜底
	d.err = errors.New("redis down")
	res, err = f.signals.OnExternalSignal(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, ReasonWrongState, res.Reason)
}

func TestOnExternalSignal_RetryAfterErrorIsNotDuplicate(t *testing.T) {
	d := &mapDeduper{}
	f := newFixture(t, d)
	ctx := context.Background()
	c := f.waitingCase(t, "$final")

	cases := &flakyCases{CaseStore: f.stores.Cases, failures: 1}
	signals := NewSignalHandler(SignalDeps{
		Cases:    cases,
		Messages: f.stores.Messages,
		Trigger:  f.trigger,
		Recorder: audit.NewRecorder(f.stores.Audit, zerolog.Nop()),
		Rooms:    testRooms,
		Deduper:  d,
	}, zerolog.Nop())
	s := Signal{Room: testRooms.Room1, TargetRef: "$final", Key: "👍", Actor: "@alice"}

	_, err := signals.OnExternalSignal(ctx, s)
	require.Error(t, err)
	assert.Empty(t, d.seen, "处理失败后应释放去重标记")

	res, err := signals.OnExternalSignal(ctx, s)
	require.NoError(t, err)
	assert.True(t, res.Processed, "重试不应被判为重复")

	got, err := f.stores.Cases.Get(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCleanupRunning, got.Status)
	assert.NotNil(t, got.CleanupTriggeredAt)
	assert.Len(t, f.cleanupJobs(t), 1)

	// 成功处理后的重复信号仍被去重
	res, err = signals.OnExternalSignal(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, ReasonDuplicate, res.Reason)
}
