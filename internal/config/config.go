package config

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/azhengyongqin/caseflow/internal/backoff"
)

// 存储驱动
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config 应用配置
type Config struct {
	Log        LogConfig
	HTTP       HTTPConfig
	Store      StoreConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	DBPool     DBPoolConfig
	Worker     WorkerConfig
	Backoff    BackoffConfig
	Rooms      RoomsConfig
	Messenger  MessengerConfig
	Signal     SignalConfig
	Monitoring MonitoringConfig
}

// LogConfig 日志配置
type LogConfig struct {
	Level      string
	Production bool
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StoreConfig 存储驱动配置（postgres | memory）
type StoreConfig struct {
	Driver string
}

// RedisConfig Redis 配置（可选，仅用于信号去重与就绪检查）
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN           string
	MigrateOnBoot bool
}

// DBPoolConfig 数据库连接池配置
type DBPoolConfig struct {
	MaxConns          int32
	MinConns          int32
	MaxConnLifetime   time.Duration
	MaxConnIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// WorkerConfig Worker 运行时配置
type WorkerConfig struct {
	ID              string
	Concurrency     int
	BatchSize       int
	PollInterval    time.Duration
	JobTimeout      time.Duration
	ShutdownTimeout time.Duration
	MaxAttempts     int
}

// BackoffConfig 重试退避配置
type BackoffConfig struct {
	Initial     time.Duration
	Factor      float64
	Max         time.Duration
	JitterRatio float64
}

// RoomsConfig 外部频道配置
type RoomsConfig struct {
	Room1ID string // 主频道：接收病例、发布最终回复
	Room2ID string // 医生决策频道
	Room3ID string // 预约频道
}

// MessengerConfig 消息发送配置
type MessengerConfig struct {
	WebhookURL string
	Timeout    time.Duration
}

// SignalConfig 外部信号配置
type SignalConfig struct {
	DedupeTTL time.Duration
}

// MonitoringConfig 监控配置
type MonitoringConfig struct {
	RefreshInterval time.Duration
}

// Load 加载配置
func Load() (*Config, error) {
	v := viper.New()

	// 设置配置文件名和路径
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	v.AddConfigPath("..")
	v.AddConfigPath("../..")

	// 允许从环境变量读取（优先级最高）
	v.AutomaticEnv()

	// 读取配置文件（如果存在）
	_ = v.ReadInConfig() // 忽略错误，因为可能只使用环境变量

	cfg := &Config{}

	// 日志配置
	cfg.Log.Level = v.GetString("LOG_LEVEL")
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Production = v.GetBool("LOG_PRODUCTION")

	// HTTP 配置
	cfg.HTTP.Addr = v.GetString("HTTP_ADDR")
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":28080"
	}
	cfg.HTTP.ShutdownTimeout = v.GetDuration("HTTP_SHUTDOWN_TIMEOUT")
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}

	// 存储驱动
	cfg.Store.Driver = v.GetString("STORE_DRIVER")
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreDriverPostgres
	}

	// Redis 配置
	cfg.Redis.Addr = v.GetString("REDIS_ADDR")
	cfg.Redis.Password = v.GetString("REDIS_PASSWORD")
	cfg.Redis.DB = v.GetInt("REDIS_DB")

	// PostgreSQL 配置
	cfg.Postgres.DSN = v.GetString("POSTGRES_DSN")
	if cfg.Postgres.DSN == "" && cfg.Store.Driver == StoreDriverPostgres {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	cfg.Postgres.MigrateOnBoot = v.GetBool("POSTGRES_MIGRATE_ON_BOOT")

	// 数据库连接池配置
	cfg.DBPool.MaxConns = int32(v.GetInt("DB_MAX_CONNS"))
	if cfg.DBPool.MaxConns == 0 {
		cfg.DBPool.MaxConns = 20
	}

	cfg.DBPool.MinConns = int32(v.GetInt("DB_MIN_CONNS"))
	if cfg.DBPool.MinConns == 0 {
		cfg.DBPool.MinConns = 5
	}

	cfg.DBPool.MaxConnLifetime = v.GetDuration("DB_MAX_CONN_LIFETIME")
	if cfg.DBPool.MaxConnLifetime == 0 {
		cfg.DBPool.MaxConnLifetime = 30 * time.Minute
	}

	cfg.DBPool.MaxConnIdleTime = v.GetDuration("DB_MAX_CONN_IDLE_TIME")
	if cfg.DBPool.MaxConnIdleTime == 0 {
		cfg.DBPool.MaxConnIdleTime = 5 * time.Minute
	}

	cfg.DBPool.HealthCheckPeriod = v.GetDuration("DB_HEALTH_CHECK_PERIOD")
	if cfg.DBPool.HealthCheckPeriod == 0 {
		cfg.DBPool.HealthCheckPeriod = 1 * time.Minute
	}

	// Worker 配置
	cfg.Worker.ID = v.GetString("WORKER_ID")
	if cfg.Worker.ID == "" {
		cfg.Worker.ID = defaultWorkerID()
	}
	cfg.Worker.Concurrency = v.GetInt("WORKER_CONCURRENCY")
	if cfg.Worker.Concurrency == 0 {
		cfg.Worker.Concurrency = 4
	}
	cfg.Worker.BatchSize = v.GetInt("WORKER_BATCH_SIZE")
	if cfg.Worker.BatchSize == 0 {
		cfg.Worker.BatchSize = cfg.Worker.Concurrency
	}
	cfg.Worker.PollInterval = v.GetDuration("WORKER_POLL_INTERVAL")
	if cfg.Worker.PollInterval == 0 {
		cfg.Worker.PollInterval = 1 * time.Second
	}
	cfg.Worker.JobTimeout = v.GetDuration("WORKER_JOB_TIMEOUT")
	if cfg.Worker.JobTimeout == 0 {
		cfg.Worker.JobTimeout = 2 * time.Minute
	}
	cfg.Worker.ShutdownTimeout = v.GetDuration("WORKER_SHUTDOWN_TIMEOUT")
	if cfg.Worker.ShutdownTimeout == 0 {
		cfg.Worker.ShutdownTimeout = 30 * time.Second
	}
	cfg.Worker.MaxAttempts = v.GetInt("JOB_MAX_ATTEMPTS")
	if cfg.Worker.MaxAttempts == 0 {
		cfg.Worker.MaxAttempts = 5
	}

	// 退避配置
	def := backoff.DefaultPolicy()
	cfg.Backoff.Initial = v.GetDuration("BACKOFF_INITIAL")
	if cfg.Backoff.Initial == 0 {
		cfg.Backoff.Initial = def.Initial
	}
	cfg.Backoff.Factor = v.GetFloat64("BACKOFF_FACTOR")
	if cfg.Backoff.Factor == 0 {
		cfg.Backoff.Factor = def.Factor
	}
	cfg.Backoff.Max = v.GetDuration("BACKOFF_MAX")
	if cfg.Backoff.Max == 0 {
		cfg.Backoff.Max = def.Max
	}
	cfg.Backoff.JitterRatio = def.JitterRatio
	if v.IsSet("BACKOFF_JITTER") {
		cfg.Backoff.JitterRatio = v.GetFloat64("BACKOFF_JITTER")
	}

	// 频道配置
	cfg.Rooms.Room1ID = v.GetString("ROOM1_ID")
	if cfg.Rooms.Room1ID == "" {
		cfg.Rooms.Room1ID = "room1"
	}
	cfg.Rooms.Room2ID = v.GetString("ROOM2_ID")
	if cfg.Rooms.Room2ID == "" {
		cfg.Rooms.Room2ID = "room2"
	}
	cfg.Rooms.Room3ID = v.GetString("ROOM3_ID")
	if cfg.Rooms.Room3ID == "" {
		cfg.Rooms.Room3ID = "room3"
	}

	// 消息发送配置
	cfg.Messenger.WebhookURL = v.GetString("MESSENGER_WEBHOOK_URL")
	cfg.Messenger.Timeout = v.GetDuration("MESSENGER_TIMEOUT")
	if cfg.Messenger.Timeout == 0 {
		cfg.Messenger.Timeout = 10 * time.Second
	}

	// 信号去重
	cfg.Signal.DedupeTTL = v.GetDuration("SIGNAL_DEDUPE_TTL")
	if cfg.Signal.DedupeTTL == 0 {
		cfg.Signal.DedupeTTL = 10 * time.Minute
	}

	// 监控配置
	cfg.Monitoring.RefreshInterval = v.GetDuration("METRICS_REFRESH_INTERVAL")
	if cfg.Monitoring.RefreshInterval == 0 {
		cfg.Monitoring.RefreshInterval = 15 * time.Second
	}

	return cfg, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("PostgreSQL DSN is required")
		}
	case StoreDriverMemory:
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("worker concurrency must be >= 1")
	}
	if c.Worker.BatchSize < 1 {
		return fmt.Errorf("worker batch size must be >= 1")
	}
	if c.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll interval must be positive")
	}
	if c.Worker.JobTimeout <= 0 {
		return fmt.Errorf("worker job timeout must be positive")
	}
	if c.Worker.MaxAttempts < 1 {
		return fmt.Errorf("job max attempts must be >= 1")
	}
	if c.Backoff.Factor < 1 {
		return fmt.Errorf("backoff factor must be >= 1")
	}
	if c.Backoff.JitterRatio < 0 || c.Backoff.JitterRatio > 1 {
		return fmt.Errorf("backoff jitter must be within [0, 1]")
	}
	if c.Rooms.Room1ID == c.Rooms.Room2ID || c.Rooms.Room1ID == c.Rooms.Room3ID || c.Rooms.Room2ID == c.Rooms.Room3ID {
		return fmt.Errorf("room ids must be distinct")
	}
	return nil
}

// BackoffPolicy 转换为退避策略
func (c *Config) BackoffPolicy() backoff.Policy {
	return backoff.Policy{
		Initial:     c.Backoff.Initial,
		Factor:      c.Backoff.Factor,
		Max:         c.Backoff.Max,
		JitterRatio: c.Backoff.JitterRatio,
	}.Normalize()
}

// EffectiveBatchSize 认领批量不超过并发度，避免已认领作业排队等待
func (c *Config) EffectiveBatchSize() int {
	if c.Worker.BatchSize > c.Worker.Concurrency {
		return c.Worker.Concurrency
	}
	return c.Worker.BatchSize
}

// defaultWorkerID 主机名 + 随机后缀
func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "worker"
	}
	return host + "-" + uuid.NewString()[:8]
}
