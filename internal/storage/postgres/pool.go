package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/azhengyongqin/caseflow/internal/metrics"
)

// DBConfig 数据库连接池配置
type DBConfig struct {
	MaxConns          int32         // 最大连接数，默认 20
	MinConns          int32         // 最小连接数，默认 5
	MaxConnLifetime   time.Duration // 连接最大生命周期，默认 30分钟
	MaxConnIdleTime   time.Duration // 连接最大空闲时间，默认 5分钟
	HealthCheckPeriod time.Duration // 健康检查周期，默认 1分钟
}

// DefaultDBConfig 返回默认数据库配置
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MaxConns:          20,
		MinConns:          5,
		MaxConnLifetime:   30 * time.Minute,
		MaxConnIdleTime:   5 * time.Minute,
		HealthCheckPeriod: time.Minute,
	}
}

// DB 同一个 pgx 连接池上的三种访问方式：
// Pool 给作业队列与病例仓储（原生 SQL），SQL 给迁移，Gorm 给审计与消息仓储
type DB struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
	Gorm *gorm.DB
}

// NewDB 使用默认配置创建数据库连接
func NewDB(ctx context.Context, dsn string) (*DB, error) {
	return NewDBWithConfig(ctx, dsn, DefaultDBConfig())
}

// NewDBWithConfig 使用指定配置创建数据库连接
func NewDBWithConfig(ctx context.Context, dsn string, cfg DBConfig) (*DB, error) {
	pool, err := NewPool(ctx, dsn, cfg)
	if err != nil {
		return nil, err
	}

	// database/sql 句柄复用 pgx 连接池
	sqlDB := stdlib.OpenDBFromPool(pool)

	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	return &DB{Pool: pool, SQL: sqlDB, Gorm: gdb}, nil
}

// NewPool 创建 pgx 连接池并做连通性检查
func NewPool(ctx context.Context, dsn string, cfg DBConfig) (*pgxpool.Pool, error) {
	if err := validateDSN(dsn); err != nil {
		return nil, fmt.Errorf("invalid POSTGRES_DSN: %w", err)
	}

	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	applyPoolConfig(pcfg, cfg)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 连通性检查
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

func applyPoolConfig(pcfg *pgxpool.Config, cfg DBConfig) {
	def := DefaultDBConfig()
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = def.MaxConns
	}
	if cfg.MinConns < 0 || cfg.MinConns > cfg.MaxConns {
		cfg.MinConns = def.MinConns
		if cfg.MinConns > cfg.MaxConns {
			cfg.MinConns = cfg.MaxConns
		}
	}
	if cfg.MaxConnLifetime <= 0 {
		cfg.MaxConnLifetime = def.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime <= 0 {
		cfg.MaxConnIdleTime = def.MaxConnIdleTime
	}
	if cfg.HealthCheckPeriod <= 0 {
		cfg.HealthCheckPeriod = def.HealthCheckPeriod
	}

	pcfg.MaxConns = cfg.MaxConns
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	pcfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	pcfg.HealthCheckPeriod = cfg.HealthCheckPeriod
}

// ReportPoolStats 把连接池使用情况写入指标
func (d *DB) ReportPoolStats() {
	s := d.Pool.Stat()
	metrics.UpdateDBPoolStats(s.AcquiredConns(), s.IdleConns(), s.MaxConns())
}

// Close 关闭数据库连接
func (d *DB) Close() {
	_ = d.SQL.Close()
	d.Pool.Close()
}
