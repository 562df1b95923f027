// Package storetest 提供仓储实现共用的行为测试，内存实现与 PostgreSQL 实现跑同一套用例。
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// Stores 被测仓储
type Stores struct {
	Jobs  repository.JobStore
	Cases repository.CaseStore
}

// Factory 每个子测试调用一次，返回干净的仓储
type Factory func(t *testing.T) Stores

// far 足够远的认领时间，越过任何退避
var far = 24 * time.Hour

// RunJobStore 执行作业队列行为测试
func RunJobStore(t *testing.T, newStores Factory) {
	t.Run("enqueue defaults", func(t *testing.T) {
		s := newStores(t)
		job, err := s.Jobs.Enqueue(context.Background(), repository.EnqueueInput{JobType: "x"})
		require.NoError(t, err)

		assert.Equal(t, model.JobStatusQueued, job.Status)
		assert.Equal(t, 0, job.Attempts)
		assert.Equal(t, repository.DefaultMaxAttempts, job.MaxAttempts)
		assert.JSONEq(t, `{}`, string(job.Payload))
		assert.Nil(t, job.CaseID)
	})

	t.Run("enqueue rejects invalid input", func(t *testing.T) {
		s := newStores(t)
		_, err := s.Jobs.Enqueue(context.Background(), repository.EnqueueInput{})
		assert.Error(t, err, "job_type 为空应该失败")

		_, err = s.Jobs.Enqueue(context.Background(), repository.EnqueueInput{JobType: "x", Payload: json.RawMessage(`{`)})
		assert.Error(t, err, "非法 JSON 应该失败")
	})

	t.Run("claim respects run_after", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()
		base := time.Now().UTC().Truncate(time.Millisecond)

		future, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", RunAfter: base.Add(time.Hour)})
		require.NoError(t, err)

		claimed, err := s.Jobs.ClaimBatch(ctx, "w1", 10, base)
		require.NoError(t, err)
		assert.Empty(t, claimed, "未到期的作业不应被认领")

		claimed, err = s.Jobs.ClaimBatch(ctx, "w1", 10, base.Add(time.Hour-time.Millisecond))
		require.NoError(t, err)
		assert.Empty(t, claimed, "到期前一刻也不应被认领")

		claimed, err = s.Jobs.ClaimBatch(ctx, "w1", 10, base.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, future.ID, claimed[0].ID)
		assert.Equal(t, model.JobStatusRunning, claimed[0].Status)
		assert.Equal(t, "w1", claimed[0].ClaimedBy)
		assert.NotNil(t, claimed[0].ClaimedAt)
	})

	t.Run("claim orders by run_after and honours limit", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()
		base := time.Now().UTC().Add(-time.Hour).Truncate(time.Millisecond)

		late, _ := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", RunAfter: base.Add(3 * time.Minute)})
		early, _ := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", RunAfter: base.Add(1 * time.Minute)})
		mid, _ := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", RunAfter: base.Add(2 * time.Minute)})

		claimed, err := s.Jobs.ClaimBatch(ctx, "w1", 2, time.Now())
		require.NoError(t, err)
		require.Len(t, claimed, 2)
		assert.Equal(t, early.ID, claimed[0].ID)
		assert.Equal(t, mid.ID, claimed[1].ID)

		claimed, err = s.Jobs.ClaimBatch(ctx, "w1", 2, time.Now())
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		assert.Equal(t, late.ID, claimed[0].ID)

		claimed, err = s.Jobs.ClaimBatch(ctx, "w1", 0, time.Now())
		require.NoError(t, err)
		assert.Empty(t, claimed)
	})

	t.Run("concurrent claims never overlap", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		const total = 60
		want := map[int64]bool{}
		for i := 0; i < total; i++ {
			job, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x"})
			require.NoError(t, err)
			want[job.ID] = true
		}

		const workers = 8
		var (
			mu   sync.Mutex
			seen = map[int64]int{}
			wg   sync.WaitGroup
		)
		now := time.Now().Add(time.Second)
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func(workerID string) {
				defer wg.Done()
				for {
					batch, err := s.Jobs.ClaimBatch(ctx, workerID, 3, now)
					if !assert.NoError(t, err) || len(batch) == 0 {
						return
					}
					mu.Lock()
					for _, j := range batch {
						seen[j.ID]++
					}
					mu.Unlock()
				}
			}(uuid.NewString())
		}
		wg.Wait()

		assert.Len(t, seen, total, "所有作业都应被认领")
		for id, n := range seen {
			assert.True(t, want[id])
			assert.Equal(t, 1, n, "作业 %d 被认领了 %d 次", id, n)
		}
	})

	t.Run("fail increments attempts until dead", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		job, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", MaxAttempts: 3})
		require.NoError(t, err)

		for attempt := 1; attempt <= 2; attempt++ {
			claimed, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now().Add(far))
			require.NoError(t, err)
			require.Len(t, claimed, 1)

			before := time.Now()
			failed, exhausted, err := s.Jobs.Fail(ctx, job.ID, "w1", "boom")
			require.NoError(t, err)
			assert.False(t, exhausted)
			assert.Equal(t, model.JobStatusQueued, failed.Status)
			assert.Equal(t, attempt, failed.Attempts)
			assert.LessOrEqual(t, failed.Attempts, failed.MaxAttempts)
			assert.Equal(t, "boom", failed.LastError)
			assert.True(t, failed.RunAfter.After(before.Add(-time.Second)), "重试应被推迟")
			assert.Empty(t, failed.ClaimedBy)
		}

		claimed, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now().Add(far))
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		dead, exhausted, err := s.Jobs.Fail(ctx, job.ID, "w1", "boom")
		require.NoError(t, err)
		assert.True(t, exhausted)
		assert.Equal(t, model.JobStatusDead, dead.Status)
		assert.Equal(t, 3, dead.Attempts)

		_, _, err = s.Jobs.Fail(ctx, job.ID, "w1", "again")
		assert.ErrorIs(t, err, repository.ErrJobNotRunning, "dead 作业不能再次失败")
	})

	t.Run("retry is not claimable before backoff elapses", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		job, _ := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", MaxAttempts: 3})
		_, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now())
		require.NoError(t, err)

		failed, _, err := s.Jobs.Fail(ctx, job.ID, "w1", "boom")
		require.NoError(t, err)

		claimed, err := s.Jobs.ClaimBatch(ctx, "w1", 1, failed.RunAfter.Add(-time.Millisecond))
		require.NoError(t, err)
		assert.Empty(t, claimed)

		claimed, err = s.Jobs.ClaimBatch(ctx, "w1", 1, failed.RunAfter)
		require.NoError(t, err)
		assert.Len(t, claimed, 1)
	})

	t.Run("fail twice then complete ends done with two attempts", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		job, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", MaxAttempts: 3})
		require.NoError(t, err)

		for i := 0; i < 2; i++ {
			claimed, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now().Add(far))
			require.NoError(t, err)
			require.Len(t, claimed, 1)
			_, exhausted, err := s.Jobs.Fail(ctx, job.ID, "w1", "transient")
			require.NoError(t, err)
			require.False(t, exhausted)
		}

		claimed, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now().Add(far))
		require.NoError(t, err)
		require.Len(t, claimed, 1)
		require.NoError(t, s.Jobs.Complete(ctx, job.ID, "w1"))

		got, err := s.Jobs.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusDone, got.Status)
		assert.Equal(t, 2, got.Attempts)
	})

	t.Run("single attempt job dies on first failure", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		job, _ := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", MaxAttempts: 1})
		_, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now())
		require.NoError(t, err)

		dead, exhausted, err := s.Jobs.Fail(ctx, job.ID, "w1", "boom")
		require.NoError(t, err)
		assert.True(t, exhausted)
		assert.Equal(t, model.JobStatusDead, dead.Status)
		assert.Equal(t, 1, dead.Attempts)
	})

	t.Run("complete is idempotent", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		job, _ := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x"})
		assert.ErrorIs(t, s.Jobs.Complete(ctx, job.ID, "w1"), repository.ErrJobNotRunning, "queued 作业不能直接完成")

		_, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now())
		require.NoError(t, err)
		require.NoError(t, s.Jobs.Complete(ctx, job.ID, "w1"))
		require.NoError(t, s.Jobs.Complete(ctx, job.ID, "w1"), "重复完成应该是 no-op")

		assert.ErrorIs(t, s.Jobs.Complete(ctx, job.ID+1000, "w1"), repository.ErrNotFound)
	})

	t.Run("dead letter increments attempts", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		job, _ := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "unknown", MaxAttempts: 5})
		_, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now())
		require.NoError(t, err)

		dead, err := s.Jobs.DeadLetter(ctx, job.ID, "w1", "unknown job type")
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusDead, dead.Status)
		assert.Equal(t, 1, dead.Attempts)
		assert.Equal(t, "unknown job type", dead.LastError)

		_, err = s.Jobs.DeadLetter(ctx, job.ID, "w1", "again")
		assert.ErrorIs(t, err, repository.ErrJobNotRunning)
	})

	t.Run("reconcile resets running jobs without touching attempts", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		var ids []int64
		for i := 0; i < 4; i++ {
			job, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", MaxAttempts: 5})
			require.NoError(t, err)
			ids = append(ids, job.ID)
		}

		// 第一个作业先失败一次，attempts=1
		_, err := s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now())
		require.NoError(t, err)
		_, _, err = s.Jobs.Fail(ctx, ids[0], "w1", "boom")
		require.NoError(t, err)

		// 模拟崩溃：三个作业停留在 running
		claimed, err := s.Jobs.ClaimBatch(ctx, "w-crashed", 3, time.Now().Add(far))
		require.NoError(t, err)
		require.Len(t, claimed, 3)
		before := map[int64]int{}
		for _, j := range claimed {
			before[j.ID] = j.Attempts
		}

		n, err := s.Jobs.ReconcileRunning(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)

		for id, attempts := range before {
			got, err := s.Jobs.Get(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, model.JobStatusQueued, got.Status)
			assert.Equal(t, attempts, got.Attempts, "回收不应增加 attempts")
			assert.Empty(t, got.ClaimedBy)
		}

		n, err = s.Jobs.ReconcileRunning(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), n)
	})

	t.Run("stale owner cannot finish a reclaimed job", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		job, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "x", MaxAttempts: 3})
		require.NoError(t, err)
		_, err = s.Jobs.ClaimBatch(ctx, "w-old", 1, time.Now())
		require.NoError(t, err)

		// 另一个 worker 启动时回收并重新认领
		_, err = s.Jobs.ReconcileRunning(ctx)
		require.NoError(t, err)
		claimed, err := s.Jobs.ClaimBatch(ctx, "w-new", 1, time.Now())
		require.NoError(t, err)
		require.Len(t, claimed, 1)

		assert.ErrorIs(t, s.Jobs.Complete(ctx, job.ID, "w-old"), repository.ErrJobNotRunning)
		_, _, err = s.Jobs.Fail(ctx, job.ID, "w-old", "late failure")
		assert.ErrorIs(t, err, repository.ErrJobNotRunning)
		_, err = s.Jobs.DeadLetter(ctx, job.ID, "w-old", "late fatal")
		assert.ErrorIs(t, err, repository.ErrJobNotRunning)

		got, err := s.Jobs.Get(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, model.JobStatusRunning, got.Status)
		assert.Equal(t, "w-new", got.ClaimedBy)
		assert.Equal(t, 0, got.Attempts, "旧认领者的失败不应计数")

		require.NoError(t, s.Jobs.Complete(ctx, job.ID, "w-new"))
		require.NoError(t, s.Jobs.Complete(ctx, job.ID, "w-old"), "已完成作业再次完成为 no-op")
	})

	t.Run("has active job", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		c, err := s.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusFailed})
		require.NoError(t, err)

		active, err := s.Jobs.HasActiveJob(ctx, c.CaseID, model.JobTypePostRoom1FinalFailure)
		require.NoError(t, err)
		assert.False(t, active)

		job, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{CaseID: &c.CaseID, JobType: model.JobTypePostRoom1FinalFailure})
		require.NoError(t, err)
		require.NotNil(t, job.CaseID)
		assert.Equal(t, c.CaseID, *job.CaseID)

		active, err = s.Jobs.HasActiveJob(ctx, c.CaseID, model.JobTypePostRoom1FinalFailure)
		require.NoError(t, err)
		assert.True(t, active)

		active, err = s.Jobs.HasActiveJob(ctx, c.CaseID, model.JobTypeExecuteCleanup)
		require.NoError(t, err)
		assert.False(t, active, "不同类型不算")

		_, err = s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now())
		require.NoError(t, err)
		require.NoError(t, s.Jobs.Complete(ctx, job.ID, "w1"))

		active, err = s.Jobs.HasActiveJob(ctx, c.CaseID, model.JobTypePostRoom1FinalFailure)
		require.NoError(t, err)
		assert.False(t, active, "已完成的作业不算活跃")
	})

	t.Run("list and count", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		for i := 0; i < 3; i++ {
			_, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "a"})
			require.NoError(t, err)
		}
		_, err := s.Jobs.Enqueue(ctx, repository.EnqueueInput{JobType: "b"})
		require.NoError(t, err)
		_, err = s.Jobs.ClaimBatch(ctx, "w1", 1, time.Now())
		require.NoError(t, err)

		all, err := s.Jobs.List(ctx, repository.ListJobsFilter{})
		require.NoError(t, err)
		require.Len(t, all, 4)
		assert.Greater(t, all[0].ID, all[1].ID, "按 id 倒序")

		onlyB, err := s.Jobs.List(ctx, repository.ListJobsFilter{JobType: "b"})
		require.NoError(t, err)
		assert.Len(t, onlyB, 1)

		running, err := s.Jobs.List(ctx, repository.ListJobsFilter{Status: string(model.JobStatusRunning)})
		require.NoError(t, err)
		assert.Len(t, running, 1)

		paged, err := s.Jobs.List(ctx, repository.ListJobsFilter{Limit: 2, Offset: 3})
		require.NoError(t, err)
		assert.Len(t, paged, 1)

		counts, err := s.Jobs.CountByStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, counts[model.JobStatusQueued])
		assert.Equal(t, 1, counts[model.JobStatusRunning])

		_, err = s.Jobs.Get(ctx, 99999)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	})
}

// RunCaseStore 执行病例仓储行为测试
func RunCaseStore(t *testing.T, newStores Factory) {
	t.Run("create and get", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		c, err := s.Cases.Create(ctx, repository.CreateCaseInput{OriginRef: "$origin-1"})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, c.CaseID)
		assert.Equal(t, model.CaseStatusNew, c.Status)
		assert.Nil(t, c.CleanupTriggeredAt)

		got, err := s.Cases.Get(ctx, c.CaseID)
		require.NoError(t, err)
		assert.Equal(t, "$origin-1", got.OriginRef)

		status, err := s.Cases.GetStatus(ctx, c.CaseID)
		require.NoError(t, err)
		assert.Equal(t, model.CaseStatusNew, status)

		_, err = s.Cases.Get(ctx, uuid.New())
		assert.ErrorIs(t, err, repository.ErrNotFound)

		_, err = s.Cases.Create(ctx, repository.CreateCaseInput{Status: "BOGUS"})
		assert.Error(t, err)
	})

	t.Run("set status is conditional", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		c, _ := s.Cases.Create(ctx, repository.CreateCaseInput{})
		ok, err := s.Cases.SetStatus(ctx, c.CaseID, model.CaseStatusNew, model.CaseStatusR1AckProcessing)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.Cases.SetStatus(ctx, c.CaseID, model.CaseStatusNew, model.CaseStatusR1AckProcessing)
		require.NoError(t, err)
		assert.False(t, ok, "前置状态不匹配时不写入")
	})

	t.Run("final reply lookup", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		c, _ := s.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusFailed})
		require.NoError(t, s.Cases.SetFinalReplyRef(ctx, c.CaseID, "$final-1"))

		got, err := s.Cases.GetByFinalReplyRef(ctx, "$final-1")
		require.NoError(t, err)
		assert.Equal(t, c.CaseID, got.CaseID)

		_, err = s.Cases.GetByFinalReplyRef(ctx, "$other")
		assert.ErrorIs(t, err, repository.ErrNotFound)

		assert.ErrorIs(t, s.Cases.SetFinalReplyRef(ctx, uuid.New(), "$x"), repository.ErrNotFound)
	})

	t.Run("cleanup trigger fires exactly once under concurrency", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		c, err := s.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusWaitR1CleanupThumbs})
		require.NoError(t, err)

		const callers = 16
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			winners []string
		)
		start := make(chan struct{})
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func(actor string) {
				defer wg.Done()
				<-start
				won, err := s.Cases.MaybeTriggerCleanup(ctx, c.CaseID, actor)
				if !assert.NoError(t, err) {
					return
				}
				if won {
					mu.Lock()
					winners = append(winners, actor)
					mu.Unlock()
				}
			}(uuid.NewString())
		}
		close(start)
		wg.Wait()

		require.Len(t, winners, 1, "只能有一个赢家")

		got, err := s.Cases.Get(ctx, c.CaseID)
		require.NoError(t, err)
		require.NotNil(t, got.CleanupTriggeredAt)
		assert.Equal(t, winners[0], got.CleanupTriggeredBy)
		assert.Equal(t, model.CaseStatusCleanupRunning, got.Status)

		won, err := s.Cases.MaybeTriggerCleanup(ctx, c.CaseID, "late")
		require.NoError(t, err)
		assert.False(t, won, "迟到的信号是 no-op")

		again, err := s.Cases.Get(ctx, c.CaseID)
		require.NoError(t, err)
		assert.True(t, got.CleanupTriggeredAt.Equal(*again.CleanupTriggeredAt), "触发时间只写入一次")
	})

	t.Run("cleanup trigger requires waiting status", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		c, _ := s.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusWaitDoctor})
		won, err := s.Cases.MaybeTriggerCleanup(ctx, c.CaseID, "actor")
		require.NoError(t, err)
		assert.False(t, won)

		got, _ := s.Cases.Get(ctx, c.CaseID)
		assert.Nil(t, got.CleanupTriggeredAt)
	})

	t.Run("mark cleaned", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		c, _ := s.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusWaitR1CleanupThumbs})
		ok, err := s.Cases.MarkCleaned(ctx, c.CaseID)
		require.NoError(t, err)
		assert.False(t, ok, "未进入 CLEANUP_RUNNING 不能完成")

		_, err = s.Cases.MaybeTriggerCleanup(ctx, c.CaseID, "actor")
		require.NoError(t, err)

		ok, err = s.Cases.MarkCleaned(ctx, c.CaseID)
		require.NoError(t, err)
		assert.True(t, ok)

		got, _ := s.Cases.Get(ctx, c.CaseID)
		assert.Equal(t, model.CaseStatusCleaned, got.Status)
		assert.NotNil(t, got.CleanupCompletedAt)
	})

	t.Run("list by status", func(t *testing.T) {
		s := newStores(t)
		ctx := context.Background()

		_, _ = s.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusFailed})
		_, _ = s.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusDoctorAccepted})
		_, _ = s.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusNew})

		got, err := s.Cases.ListByStatus(ctx, []model.CaseStatus{model.CaseStatusFailed, model.CaseStatusDoctorAccepted}, 10)
		require.NoError(t, err)
		assert.Len(t, got, 2)

		none, err := s.Cases.ListByStatus(ctx, nil, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}
