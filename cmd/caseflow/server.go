package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpserver "github.com/azhengyongqin/caseflow/internal/server"
)

func newServerCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "启动 HTTP API 服务",
		Long:  "启动 HTTP API 服务。memory 驱动下作业只在本进程可见，需要 --with-worker 才会被处理。",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			httpSrv := &http.Server{
				Addr: cfg.HTTP.Addr,
				Handler: httpserver.NewRouter(httpserver.Deps{
					Cases:         a.cases,
					Jobs:          a.jobs,
					Events:        a.events,
					Recorder:      a.recorder,
					Queue:         a.queue,
					Signals:       a.signals,
					JobTypes:      a.registry.Types(),
					HealthChecker: a.healthChecker(),
					Version:       version,
				}),
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.log.Info().Str("addr", cfg.HTTP.Addr).Str("store", cfg.Store.Driver).Msg("HTTP 服务监听")
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
				defer cancel()
				return httpSrv.Shutdown(shutdownCtx)
			})
			g.Go(func() error {
				a.newGaugeRefresher().Run(gctx)
				return nil
			})
			if withWorker {
				rt := a.newRuntime()
				g.Go(func() error { return rt.Run(gctx) })
			}

			if err := g.Wait(); err != nil {
				return err
			}
			a.log.Info().Msg("服务已优雅关闭")
			return nil
		},
	}
	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "在同一进程内运行 worker")
	return cmd
}
