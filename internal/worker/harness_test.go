package workers

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/backoff"
	"github.com/azhengyongqin/caseflow/internal/queue"
	"github.com/azhengyongqin/caseflow/internal/repository/memory"
)

// fakeClock 测试用可推进时钟
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type harness struct {
	clock    *fakeClock
	stores   *memory.Stores
	registry *Registry
	queue    *queue.Client
	recorder *audit.Recorder
	runtime  *Runtime
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()

	clock := newFakeClock()
	stores := memory.New(backoff.DefaultPolicy(), clock.Now)
	log := zerolog.Nop()
	recorder := audit.NewRecorder(stores.Audit, log)
	q := queue.NewClient(stores.Jobs, 5, log)
	registry := NewRegistry()

	if opts.WorkerID == "" {
		opts.WorkerID = "test-worker"
	}
	rt := NewRuntime(Deps{
		Jobs:      stores.Jobs,
		Registry:  registry,
		Finalizer: NewFinalizer(stores.Cases, recorder, q, log),
		Recovery:  NewRecovery(stores.Cases, q, recorder, log),
	}, opts, log)
	rt.now = clock.Now

	return &harness{
		clock:    clock,
		stores:   stores,
		registry: registry,
		queue:    q,
		recorder: recorder,
		runtime:  rt,
	}
}
