package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/azhengyongqin/caseflow/docs" // Swagger docs
	"github.com/azhengyongqin/caseflow/internal/logger"
)

// version 构建时通过 -ldflags "-X main.version=..." 注入
var version = "dev"

func main() {
	// 配置加载前的错误同样需要输出；加载配置后按 LOG_PRODUCTION 重新初始化
	_ = logger.Init(false)

	if err := newRootCmd().Execute(); err != nil {
		logger.L.Error().Err(err).Msg("命令执行失败")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string

	rootCmd := &cobra.Command{
		Use:           "caseflow",
		Short:         "病例流程作业队列与清理触发服务",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// 显式指定的 env 文件必须存在；默认 .env 缺失时忽略
			if envFile != "" {
				if err := godotenv.Load(envFile); err != nil {
					return err
				}
			} else {
				_ = godotenv.Load()
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "加载指定的 .env 文件")

	rootCmd.AddCommand(newServerCmd())
	rootCmd.AddCommand(newWorkerCmd())
	rootCmd.AddCommand(newMigrateCmd())
	return rootCmd
}
