package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/azhengyongqin/caseflow/internal/config"
	"github.com/azhengyongqin/caseflow/internal/logger"
	"github.com/azhengyongqin/caseflow/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "数据库迁移",
	}
	cmd.AddCommand(
		migrateSubCmd("up", "执行全部未应用的迁移", func(ctx context.Context, db *postgres.DB) error {
			if err := postgres.Migrate(ctx, db.SQL, logger.L); err != nil {
				return err
			}
			return printVersion(ctx, db)
		}),
		migrateSubCmd("down", "回滚最近一次迁移", func(ctx context.Context, db *postgres.DB) error {
			if err := postgres.Rollback(ctx, db.SQL, logger.L); err != nil {
				return err
			}
			return printVersion(ctx, db)
		}),
		migrateSubCmd("status", "查看当前迁移版本", printVersion),
	)
	return cmd
}

func migrateSubCmd(use, short string, run func(ctx context.Context, db *postgres.DB) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Store.Driver != config.StoreDriverPostgres {
				return fmt.Errorf("migrate 需要 STORE_DRIVER=postgres")
			}

			ctx := cmd.Context()
			db, err := postgres.NewDBWithConfig(ctx, cfg.Postgres.DSN, postgres.DefaultDBConfig())
			if err != nil {
				return fmt.Errorf("连接数据库失败: %w", err)
			}
			defer db.Close()

			return run(ctx, db)
		},
	}
}

func printVersion(ctx context.Context, db *postgres.DB) error {
	v, err := postgres.MigrationVersion(ctx, db.SQL, logger.L)
	if err != nil {
		return err
	}
	logger.L.Info().Int64("version", v).Msg("当前迁移版本")
	return nil
}
