package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/azhengyongqin/caseflow/internal/config"
)

var errShutdownTimeout = errors.New("等待作业完成超时")

func newWorkerCmd() *cobra.Command {
	var concurrency int

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "启动作业 worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if concurrency > 0 {
				cfg.Worker.Concurrency = concurrency
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if cfg.Store.Driver == config.StoreDriverMemory {
				a.log.Warn().Msg("memory 驱动下独立 worker 看不到 server 进程的作业，请使用 server --with-worker")
			}

			rt := a.newRuntime()
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return rt.Run(gctx) })
			g.Go(func() error {
				a.newGaugeRefresher().Run(gctx)
				return nil
			})

			done := make(chan error, 1)
			go func() { done <- g.Wait() }()

			select {
			case err := <-done:
				return err
			case <-ctx.Done():
			}

			// 收到停机信号：最多等待 shutdown_timeout，未完成的 running 作业在下次启动时回收
			select {
			case err := <-done:
				a.log.Info().Msg("worker 已优雅关闭")
				return err
			case <-time.After(cfg.Worker.ShutdownTimeout):
				a.log.Warn().Dur("timeout", cfg.Worker.ShutdownTimeout).Msg("停机超时，放弃等待正在执行的作业")
				return errShutdownTimeout
			}
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "覆盖 WORKER_CONCURRENCY")
	return cmd
}
