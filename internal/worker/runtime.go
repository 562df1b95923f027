// Package workers 作业运行时：启动回收、轮询认领、有界并发派发与优雅停机。
package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/azhengyongqin/caseflow/internal/metrics"
	"github.com/azhengyongqin/caseflow/internal/repository"
)

// State 运行时生命周期状态
type State string

const (
	StateStarting    State = "starting"
	StateReconciling State = "reconciling"
	StatePolling     State = "polling"
	StateDispatching State = "dispatching"
	StateDraining    State = "draining"
	StateStopped     State = "stopped"
)

var allStates = []string{
	string(StateStarting),
	string(StateReconciling),
	string(StatePolling),
	string(StateDispatching),
	string(StateDraining),
	string(StateStopped),
}

// Options 运行时参数
type Options struct {
	WorkerID     string
	Concurrency  int
	BatchSize    int
	PollInterval time.Duration
	JobTimeout   time.Duration
}

func (o Options) normalize() Options {
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	// 认领数量不超过并发度，已认领作业不会在本地排队
	if o.BatchSize < 1 || o.BatchSize > o.Concurrency {
		o.BatchSize = o.Concurrency
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.JobTimeout <= 0 {
		o.JobTimeout = 2 * time.Minute
	}
	return o
}

// Deps 运行时依赖
type Deps struct {
	Jobs      repository.JobStore
	Registry  *Registry
	Finalizer *Finalizer
	Recovery  *Recovery // 可选
}

// Runtime 单个 worker 进程的作业运行时
type Runtime struct {
	opts     Options
	jobs     repository.JobStore
	executor *Executor
	recovery *Recovery
	log      zerolog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	state State

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewRuntime(deps Deps, opts Options, log zerolog.Logger) *Runtime {
	opts = opts.normalize()
	log = log.With().Str("worker_id", opts.WorkerID).Logger()

	r := &Runtime{
		opts:     opts,
		jobs:     deps.Jobs,
		executor: NewExecutor(deps.Jobs, deps.Registry, deps.Finalizer, opts.JobTimeout, log),
		recovery: deps.Recovery,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
	r.setState(StateStarting)
	return r
}

// State 当前生命周期状态
func (r *Runtime) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

func (r *Runtime) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
	metrics.SetWorkerState(r.opts.WorkerID, string(s), allStates)
}

// advance 仅在未进入停机流程时切换状态
func (r *Runtime) advance(s State) {
	r.mu.Lock()
	if r.state == StateDraining || r.state == StateStopped {
		r.mu.Unlock()
		return
	}
	r.state = s
	r.mu.Unlock()
	metrics.SetWorkerState(r.opts.WorkerID, string(s), allStates)
}

// Reconcile 启动回收：把所有 running 作业恢复为 queued
func (r *Runtime) Reconcile(ctx context.Context) (int64, error) {
	n, err := r.jobs.ReconcileRunning(ctx)
	if err != nil {
		return 0, err
	}
	metrics.RecordReconciled(n)
	if n > 0 {
		r.log.Warn().Int64("count", n).Msg("已回收上次中断的 running 作业")
	}
	return n, nil
}

// Run 阻塞运行直到 ctx 取消或调用 Stop。
// 停机时不再认领新作业，正在执行的作业在与停机解耦的 ctx 上跑完。
func (r *Runtime) Run(ctx context.Context) error {
	defer r.setState(StateStopped)

	r.advance(StateReconciling)
	if _, err := r.Reconcile(ctx); err != nil {
		return fmt.Errorf("reconcile running jobs: %w", err)
	}
	if r.recovery != nil {
		if _, err := r.recovery.Recover(ctx); err != nil {
			r.log.Error().Err(err).Msg("恢复扫描失败")
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-r.stopCh:
		case <-loopCtx.Done():
		}
		r.setState(StateDraining)
		cancel()
	}()

	r.log.Info().
		Int("concurrency", r.opts.Concurrency).
		Int("batch_size", r.opts.BatchSize).
		Dur("poll_interval", r.opts.PollInterval).
		Msg("worker 运行时启动")

	for loopCtx.Err() == nil {
		n, err := r.RunOnce(loopCtx)
		if err != nil {
			if loopCtx.Err() != nil {
				break
			}
			metrics.RecordError("worker", "claim")
			r.log.Error().Err(err).Msg("认领作业失败")
		}
		if n > 0 {
			continue
		}
		if !r.sleep(loopCtx) {
			break
		}
	}

	cancel()
	<-watchDone
	r.log.Info().Msg("worker 运行时已停止")
	return nil
}

// RunOnce 认领一批作业并等待全部处理完成，返回处理数量
func (r *Runtime) RunOnce(ctx context.Context) (int, error) {
	r.advance(StatePolling)

	jobs, err := r.jobs.ClaimBatch(ctx, r.opts.WorkerID, r.opts.BatchSize, r.now())
	if err != nil {
		return 0, err
	}
	if len(jobs) == 0 {
		return 0, nil
	}
	metrics.RecordJobsClaimed(r.opts.WorkerID, len(jobs))
	r.advance(StateDispatching)

	// 停机不打断正在执行的作业
	execCtx := context.WithoutCancel(ctx)
	inFlight := metrics.WorkerInFlight.WithLabelValues(r.opts.WorkerID)

	var g errgroup.Group
	g.SetLimit(r.opts.Concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			inFlight.Inc()
			defer inFlight.Dec()
			r.executor.Execute(execCtx, job)
			return nil
		})
	}
	_ = g.Wait()
	return len(jobs), nil
}

// Stop 请求停机；可重复调用
func (r *Runtime) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

// sleep 空闲等待 poll_interval，停机时提前返回 false
func (r *Runtime) sleep(ctx context.Context) bool {
	t := time.NewTimer(r.opts.PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
