package main

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/draftsmith/genpipe/pkg/audit"
	"github.com/draftsmith/genpipe/pkg/cache/exact"
	"github.com/draftsmith/genpipe/pkg/cache/semantic"
	"github.com/draftsmith/genpipe/pkg/dispatch"
	"github.com/draftsmith/genpipe/pkg/experiment"
	"github.com/draftsmith/genpipe/pkg/orchestrator"
	"github.com/draftsmith/genpipe/pkg/provider"
	"github.com/draftsmith/genpipe/pkg/registry"
	"github.com/draftsmith/genpipe/pkg/server"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the generation HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			reg := registry.New(cfg.Dispatch.FailureCeiling, logger)
			if cfg.HealthSnapshotPath != "" {
				if err := reg.LoadSnapshot(cfg.HealthSnapshotPath); err != nil {
					logger.Warn("could not load provider health snapshot", zap.Error(err))
				}
			}

			var exactCache *exact.Cache
			if cfg.Cache.Enabled {
				exactCache = exact.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
			}
			var semCache *semantic.Cache
			if cfg.Semantic.Enabled {
				semCache = semantic.New(cfg.Semantic, logger)
			}

			engine := experiment.New(cfg.Experiments, logger)

			var auditStore *audit.Store
			if cfg.AuditDBPath != "" {
				auditStore, err = audit.New(cfg.AuditDBPath)
				if err != nil {
					return err
				}
				defer auditStore.Close()
			}

			generators := provider.Build(ctx, cfg.Providers, logger)
			disp := dispatch.New(reg, cfg.Dispatch, logger)
			orch := orchestrator.New(cfg, reg, disp, generators, exactCache, semCache, engine, auditStore, logger)
			srv := server.New(cfg, orch, reg, exactCache, semCache, engine, auditStore, logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return srv.ListenAndServe(gctx)
			})

			err = g.Wait()

			// Best-effort persistence on the way down.
			if cfg.HealthSnapshotPath != "" {
				if serr := reg.SaveSnapshot(cfg.HealthSnapshotPath); serr != nil {
					logger.Warn("could not save provider health snapshot", zap.Error(serr))
				}
			}
			if semCache != nil {
				if serr := semCache.SaveSnapshot(); serr != nil {
					logger.Warn("could not save semantic cache snapshot", zap.Error(serr))
				}
			}
			if serr := engine.SaveSnapshot(); serr != nil {
				logger.Warn("could not save experiment snapshot", zap.Error(serr))
			}
			orch.Close()
			return err
		},
	}
}
