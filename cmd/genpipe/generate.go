package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftsmith/genpipe/pkg/audit"
	"github.com/draftsmith/genpipe/pkg/cache/exact"
	"github.com/draftsmith/genpipe/pkg/cache/semantic"
	"github.com/draftsmith/genpipe/pkg/dispatch"
	"github.com/draftsmith/genpipe/pkg/experiment"
	"github.com/draftsmith/genpipe/pkg/models"
	"github.com/draftsmith/genpipe/pkg/orchestrator"
	"github.com/draftsmith/genpipe/pkg/provider"
	"github.com/draftsmith/genpipe/pkg/registry"
)

func newGenerateCmd() *cobra.Command {
	var category, subject string
	var showTrace bool

	cmd := &cobra.Command{
		Use:   "generate [prompt]",
		Short: "Run one generation request through the full pipeline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			reg := registry.New(cfg.Dispatch.FailureCeiling, logger)
			if cfg.HealthSnapshotPath != "" {
				if err := reg.LoadSnapshot(cfg.HealthSnapshotPath); err != nil {
					logger.Warn("could not load provider health snapshot")
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
				if auditStore, err = audit.New(cfg.AuditDBPath); err != nil {
					return err
				}
				defer auditStore.Close()
			}

			ctx := cmd.Context()
			generators := provider.Build(ctx, cfg.Providers, logger)
			disp := dispatch.New(reg, cfg.Dispatch, logger)
			orch := orchestrator.New(cfg, reg, disp, generators, exactCache, semCache, engine, auditStore, logger)

			res := orch.Generate(ctx, models.GenerationRequest{
				Category:  category,
				SubjectID: subject,
				Prompt:    strings.Join(args, " "),
			})
			orch.Close()

			fmt.Printf("provider: %s\n", res.Provider)
			if res.Variant != "" {
				fmt.Printf("variant:  %s\n", res.Variant)
			}
			fmt.Printf("\n%s\n", res.Content)
			if showTrace {
				trace, _ := json.MarshalIndent(res.Trace, "", "  ")
				fmt.Fprintf(os.Stderr, "\ntrace:\n%s\n", trace)
			}

			if cfg.HealthSnapshotPath != "" {
				if err := reg.SaveSnapshot(cfg.HealthSnapshotPath); err != nil {
					logger.Warn("could not save provider health snapshot")
				}
			}
			if semCache != nil {
				_ = semCache.SaveSnapshot()
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "generic", "generation category (cover_letter, cv, ...)")
	cmd.Flags().StringVarP(&subject, "subject", "s", "cli", "subject id for experiment assignment")
	cmd.Flags().BoolVarP(&showTrace, "trace", "t", false, "print the attempt trace to stderr")
	return cmd
}
