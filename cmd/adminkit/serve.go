package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/adminkit/internal/config"
	adminhttp "github.com/dropDatabas3/adminkit/internal/http"
	"github.com/dropDatabas3/adminkit/internal/observability/logger"
)

func newServeCmd(cfgFn func() *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta la API JSON del admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cfgFn()
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			log := logger.Named("serve")

			rt := &resources{}
			defer rt.Close()
			if err := openStore(ctx, cfg, rt, false); err != nil {
				return err
			}
			if err := openCache(ctx, cfg, rt); err != nil {
				return err
			}
			core, err := buildCore(ctx, cfg, rt)
			if err != nil {
				return err
			}

			metricsHandler, err := adminhttp.RegisterMetrics(prometheus.DefaultRegisterer)
			if err != nil {
				return err
			}
			limits := adminhttp.RateLimits{}
			if cfg.IsProd() && !cfg.Rate.Enabled {
				log.Warn("rate limiting disabled in production")
			}
			if cfg.Rate.Enabled {
				limits = adminhttp.RateLimits{
					Limiter:     rt.limiter,
					Window:      cfg.RateWindow(),
					MaxRequests: cfg.Rate.MaxRequests,
					MaxMutating: cfg.Rate.MutationMaxRequests,
				}
			}
			srv := adminhttp.NewServer(cfg.Server.Addr, adminhttp.NewRouter(adminhttp.RouterDeps{
				Handlers: adminhttp.NewHandlers(core),
				Metrics:  metricsHandler,
				Rate:     limits,
			}))

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("listening",
					logger.String("addr", cfg.Server.Addr),
					logger.String("storage", rt.conn.Name()),
					logger.String("cache", cfg.Cache.Kind),
					logger.Bool("rate_limit", cfg.Rate.Enabled),
					logger.Count(len(core.Models())))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer cancel()
				log.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}
