package cleanup

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

func TestTrigger_FirstCallerWins(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := f.waitingCase(t, "$final")

	won, err := f.trigger.MaybeTrigger(ctx, c.CaseID, "@alice")
	require.NoError(t, err)
	assert.True(t, won)

	won, err = f.trigger.MaybeTrigger(ctx, c.CaseID, "@bob")
	require.NoError(t, err)
	assert.False(t, won, "第二次触发应该静默落败")

	got, err := f.stores.Cases.Get(ctx, c.CaseID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCleanupRunning, got.Status)
	assert.Equal(t, "@alice", got.CleanupTriggeredBy)
	require.NotNil(t, got.CleanupTriggeredAt)

	jobs := f.cleanupJobs(t)
	require.Len(t, jobs, 1)
	assert.Equal(t, c.CaseID, *jobs[0].CaseID)
}

func TestTrigger_ConcurrentExactlyOnce(t *testing.T) {
	f := newFixture(t, nil)
	c := f.waitingCase(t, "$final")

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			won, err := f.trigger.MaybeTrigger(context.Background(), c.CaseID, uuid.NewString())
			assert.NoError(t, err)
			if won {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load(), "只能有一个胜出者")
	assert.Len(t, f.cleanupJobs(t), 1, "只能入队一次 execute_cleanup")
}

func TestTrigger_WrongStatusIsNoop(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c, err := f.stores.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusWaitDoctor})
	require.NoError(t, err)

	won, err := f.trigger.MaybeTrigger(ctx, c.CaseID, "@alice")
	require.NoError(t, err)
	assert.False(t, won)
	assert.Empty(t, f.cleanupJobs(t))
}
