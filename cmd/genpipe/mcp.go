package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/audit"
	"github.com/draftsmith/genpipe/pkg/cache/exact"
	"github.com/draftsmith/genpipe/pkg/cache/semantic"
	"github.com/draftsmith/genpipe/pkg/experiment"
	"github.com/draftsmith/genpipe/pkg/mcp"
	"github.com/draftsmith/genpipe/pkg/registry"
)

// newMCPCmd exposes the pipeline's read-only state over MCP stdio.
// Logs go to stderr so stdout stays clean for JSON-RPC frames.
func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP stdio server",
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
			// Interface fields stay nil unless a cache is actually built.
			var exactCache mcp.CacheStatter
			if cfg.Cache.Enabled {
				exactCache = exact.New(cfg.Cache.MaxEntries, cfg.Cache.TTL)
			}
			var semCache mcp.SemanticStatter
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

			srv := mcp.New(reg, exactCache, semCache, engine, auditStore, logger, version)
			return srv.Run(ctx, os.Stdin, os.Stdout)
		},
	}
}
