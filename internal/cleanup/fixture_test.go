package cleanup

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/model"
	"github.com/azhengyongqin/caseflow/internal/notify"
	"github.com/azhengyongqin/caseflow/internal/queue"
	"github.com/azhengyongqin/caseflow/internal/repository"
	"github.com/azhengyongqin/caseflow/internal/repository/memory"
)

var testRooms = notify.Rooms{Room1: "!room1", Room2: "!room2", Room3: "!room3"}

// redactRecorder 记录撤回调用，failRefs 中的引用撤回失败
type redactRecorder struct {
	mu       sync.Mutex
	failRefs map[string]bool
	redacted []string
}

func (m *redactRecorder) PostReply(context.Context, string, string, string) (string, error) {
	return "", errors.New("not supported")
}

func (m *redactRecorder) Post(context.Context, string, string) (string, error) {
	return "", errors.New("not supported")
}

func (m *redactRecorder) Redact(_ context.Context, _, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRefs[ref] {
		return errors.New("redaction refused")
	}
	m.redacted = append(m.redacted, ref)
	return nil
}

// mapDeduper 内存去重器
type mapDeduper struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func (d *mapDeduper) FirstSeen(_ context.Context, key string, _ time.Duration) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	if d.seen[key] {
		return false, nil
	}
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	d.seen[key] = true
	return true, nil
}

func (d *mapDeduper) Forget(_ context.Context, key string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.seen, key)
	return nil
}

// flakyCases 前 failures 次按最终回复查询病例时返回错误
type flakyCases struct {
	repository.CaseStore

	mu       sync.Mutex
	failures int
}

func (c *flakyCases) GetByFinalReplyRef(ctx context.Context, ref string) (*repository.Case, error) {
	c.mu.Lock()
	if c.failures > 0 {
		c.failures--
		c.mu.Unlock()
		return nil, errors.New("db: connection reset")
	}
	c.mu.Unlock()
	return c.CaseStore.GetByFinalReplyRef(ctx, ref)
}

type fixture struct {
	stores  *memory.Stores
	trigger *Trigger
	signals *SignalHandler
	cleaner *Cleaner
	redacts *redactRecorder
}

func newFixture(t *testing.T, dedupe Deduper) *fixture {
	t.Helper()

	now := func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	stores := memory.New(backoff.DefaultPolicy(), now)
	log := zerolog.Nop()
	recorder := audit.NewRecorder(stores.Audit, log)
	trigger := NewTrigger(stores.Cases, queue.NewClient(stores.Jobs, 5, log), log)
	redacts := &redactRecorder{failRefs: map[string]bool{}}

	return &fixture{
		stores:  stores,
		trigger: trigger,
		signals: NewSignalHandler(SignalDeps{
			Cases:    stores.Cases,
			Messages: stores.Messages,
			Trigger:  trigger,
			Recorder: recorder,
			Rooms:    testRooms,
			Deduper:  dedupe,
		}, log),
		cleaner: NewCleaner(stores.Cases, stores.Messages, redacts, recorder, log),
		redacts: redacts,
	}
}

// waitingCase 创建处于 WAIT_R1_CLEANUP_THUMBS 且已有最终回复的病例
func (f *fixture) waitingCase(t *testing.T, finalRef string) *repository.Case {
	t.Helper()
	ctx := context.Background()
	c, err := f.stores.Cases.Create(ctx, repository.CreateCaseInput{Status: model.CaseStatusWaitR1CleanupThumbs, OriginRef: "$origin"})
	require.NoError(t, err)
	require.NoError(t, f.stores.Cases.SetFinalReplyRef(ctx, c.CaseID, finalRef))
	require.NoError(t, f.stores.Messages.Add(ctx, repository.CaseMessage{
		CaseID: c.CaseID, Room: testRooms.Room1, MessageRef: finalRef, Kind: repository.MessageKindRoom1Final,
	}))
	return c
}

func (f *fixture) cleanupJobs(t *testing.T) []repository.Job {
	t.Helper()
	jobs, err := f.stores.Jobs.List(context.Background(), repository.ListJobsFilter{JobType: model.JobTypeExecuteCleanup, Limit: 200})
	require.NoError(t, err)
	return jobs
}
