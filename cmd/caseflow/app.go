package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/azhengyongqin/caseflow/internal/audit"
	"github.com/azhengyongqin/caseflow/internal/cache"
	"github.com/azhengyongqin/caseflow/internal/cleanup"
	"github.com/azhengyongqin/caseflow/internal/config"
	"github.com/azhengyongqin/caseflow/internal/healthcheck"
	"github.com/azhengyongqin/caseflow/internal/logger"
	"github.com/azhengyongqin/caseflow/internal/notify"
	"github.com/azhengyongqin/caseflow/internal/queue"
	"github.com/azhengyongqin/caseflow/internal/repository"
	"github.com/azhengyongqin/caseflow/internal/repository/memory"
	"github.com/azhengyongqin/caseflow/internal/storage/postgres"
	workers "github.com/azhengyongqin/caseflow/internal/worker"
)

// app 进程内共享的依赖
type app struct {
	cfg *config.Config
	log zerolog.Logger

	db    *postgres.DB      // memory 驱动时为 nil
	redis *cache.RedisCache // 未配置 REDIS_ADDR 时为 nil

	jobs     repository.JobStore
	cases    repository.CaseStore
	events   repository.AuditStore
	messages repository.MessageStore

	recorder  *audit.Recorder
	queue     *queue.Client
	messenger notify.Messenger
	registry  *workers.Registry
	signals   *cleanup.SignalHandler
}

// loadConfig 加载并校验配置，同时按配置初始化日志
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}
	if err := logger.Init(cfg.Log.Production); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	logger.SetLevel(cfg.Log.Level)
	return cfg, nil
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg, log: logger.L}
	policy := cfg.BackoffPolicy()

	switch cfg.Store.Driver {
	case config.StoreDriverMemory:
		stores := memory.New(policy, time.Now)
		a.jobs, a.cases, a.events, a.messages = stores.Jobs, stores.Cases, stores.Audit, stores.Messages
		a.log.Warn().Msg("使用内存存储，进程退出后数据丢失")
	default:
		db, err := postgres.NewDBWithConfig(ctx, cfg.Postgres.DSN, postgres.DBConfig{
			MaxConns:          cfg.DBPool.MaxConns,
			MinConns:          cfg.DBPool.MinConns,
			MaxConnLifetime:   cfg.DBPool.MaxConnLifetime,
			MaxConnIdleTime:   cfg.DBPool.MaxConnIdleTime,
			HealthCheckPeriod: cfg.DBPool.HealthCheckPeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("连接数据库失败: %w", err)
		}
		a.db = db
		if cfg.Postgres.MigrateOnBoot {
			if err := postgres.Migrate(ctx, db.SQL, a.log); err != nil {
				a.Close()
				return nil, fmt.Errorf("执行迁移失败: %w", err)
			}
		}
		a.jobs = repository.NewJobRepo(db.Pool, policy)
		a.cases = repository.NewCaseRepo(db.Pool)
		a.events = repository.NewAuditRepo(db.Gorm)
		a.messages = repository.NewMessageRepo(db.Gorm)
	}

	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedisCache(cache.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("连接 Redis 失败: %w", err)
		}
		a.redis = rc
	}

	if cfg.Messenger.WebhookURL != "" {
		a.messenger = notify.NewWebhookMessenger(cfg.Messenger.WebhookURL, cfg.Messenger.Timeout)
	} else {
		a.log.Warn().Msg("未配置 MESSENGER_WEBHOOK_URL，消息仅写入日志")
		a.messenger = notify.NewLogMessenger(a.log)
	}

	a.recorder = audit.NewRecorder(a.events, a.log)
	a.queue = queue.NewClient(a.jobs, cfg.Worker.MaxAttempts, a.log)

	rooms := notify.Rooms{Room1: cfg.Rooms.Room1ID, Room2: cfg.Rooms.Room2ID, Room3: cfg.Rooms.Room3ID}

	a.registry = workers.NewRegistry()
	handlers := notify.NewHandlers(notify.Deps{
		Cases:     a.cases,
		Messages:  a.messages,
		Messenger: a.messenger,
		Recorder:  a.recorder,
		Rooms:     rooms,
	}, a.log)
	if err := handlers.Register(a.registry); err != nil {
		a.Close()
		return nil, err
	}
	cleaner := cleanup.NewCleaner(a.cases, a.messages, a.messenger, a.recorder, a.log)
	if err := cleaner.Register(a.registry); err != nil {
		a.Close()
		return nil, err
	}

	deps := cleanup.SignalDeps{
		Cases:     a.cases,
		Messages:  a.messages,
		Trigger:   cleanup.NewTrigger(a.cases, a.queue, a.log),
		Recorder:  a.recorder,
		Rooms:     rooms,
		DedupeTTL: cfg.Signal.DedupeTTL,
	}
	if a.redis != nil {
		deps.Deduper = a.redis
	}
	a.signals = cleanup.NewSignalHandler(deps, a.log)

	return a, nil
}

// healthChecker 仅探测实际启用的依赖
func (a *app) healthChecker() *healthcheck.HealthChecker {
	var (
		pool  *pgxpool.Pool
		redis healthcheck.Pinger
	)
	if a.db != nil {
		pool = a.db.Pool
	}
	if a.redis != nil {
		redis = a.redis
	}
	return healthcheck.NewHealthChecker(pool, redis)
}

// newRuntime 组装 worker 运行时
func (a *app) newRuntime() *workers.Runtime {
	return workers.NewRuntime(workers.Deps{
		Jobs:      a.jobs,
		Registry:  a.registry,
		Finalizer: workers.NewFinalizer(a.cases, a.recorder, a.queue, a.log),
		Recovery:  workers.NewRecovery(a.cases, a.queue, a.recorder, a.log),
	}, workers.Options{
		WorkerID:     a.cfg.Worker.ID,
		Concurrency:  a.cfg.Worker.Concurrency,
		BatchSize:    a.cfg.EffectiveBatchSize(),
		PollInterval: a.cfg.Worker.PollInterval,
		JobTimeout:   a.cfg.Worker.JobTimeout,
	}, a.log)
}

// newGaugeRefresher 队列 gauge 与连接池统计
func (a *app) newGaugeRefresher() *workers.GaugeRefresher {
	var hooks []func()
	if a.db != nil {
		hooks = append(hooks, a.db.ReportPoolStats)
	}
	return workers.NewGaugeRefresher(a.jobs, a.cfg.Monitoring.RefreshInterval, a.log, hooks...)
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		a.db.Close()
	}
	logger.Sync()
}
