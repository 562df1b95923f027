package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/pressly/goose/v3"
	"github.com/rs/zerolog"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const migrationsDir = "migrations"

// Migrate 执行内嵌的 goose 迁移（幂等）
func Migrate(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	if err := setupGoose(log); err != nil {
		return err
	}
	if err := goose.UpContext(ctx, db, migrationsDir); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}

// MigrationVersion 返回当前库的迁移版本
func MigrationVersion(ctx context.Context, db *sql.DB, log zerolog.Logger) (int64, error) {
	if err := setupGoose(log); err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, db)
}

// Rollback 回滚最近一次迁移
func Rollback(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	if err := setupGoose(log); err != nil {
		return err
	}
	return goose.DownContext(ctx, db, migrationsDir)
}

func setupGoose(log zerolog.Logger) error {
	goose.SetLogger(&gooseLogger{log: log.With().Str("component", "migrate").Logger()})
	goose.SetBaseFS(migrationsFS)
	return goose.SetDialect("postgres")
}

// gooseLogger 实现 goose.Logger
type gooseLogger struct {
	log zerolog.Logger
}

func (l *gooseLogger) Printf(format string, v ...interface{}) {
	l.log.Info().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l *gooseLogger) Fatalf(format string, v ...interface{}) {
	l.log.Fatal().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
