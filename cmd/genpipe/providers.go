package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftsmith/genpipe/pkg/registry"
)

func newProvidersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "providers",
		Short: "Manage and inspect upstream providers",
	}
	cmd.AddCommand(newProvidersHealthCmd(), newProvidersListCmd())
	return cmd
}

func newProvidersHealthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show persisted provider health",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			reg := registry.New(cfg.Dispatch.FailureCeiling, logger)
			if cfg.HealthSnapshotPath != "" {
				if err := reg.LoadSnapshot(cfg.HealthSnapshotPath); err != nil {
					return err
				}
			}

			rows := reg.Health()
			if len(rows) == 0 {
				fmt.Println("no provider activity recorded")
				return nil
			}
			fmt.Printf("%-20s %9s %-20s %-20s\n", "PROVIDER", "FAILURES", "LAST SUCCESS", "LAST FAILURE")
			for _, r := range rows {
				success, failure := "never", "never"
				if !r.LastSuccessAt.IsZero() {
					success = r.LastSuccessAt.Format("2006-01-02 15:04:05")
				}
				if !r.LastFailureAt.IsZero() {
					failure = r.LastFailureAt.Format("2006-01-02 15:04:05")
				}
				fmt.Printf("%-20s %9d %-20s %-20s\n", r.Provider, r.ConsecutiveFailures, success, failure)
			}
			return nil
		},
	}
}

func newProvidersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show configured providers",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(cfg.Providers) == 0 {
				fmt.Println("no providers configured")
				return nil
			}
			fmt.Printf("%-20s %-14s %-8s %-10s %8s %8s %-6s\n",
				"NAME", "TYPE", "ENABLED", "PRIORITY", "HOURLY", "DAILY", "KEY")
			for _, p := range cfg.Providers {
				key := "unset"
				if strings.TrimSpace(p.APIKey) != "" {
					key = "set"
				}
				fmt.Printf("%-20s %-14s %-8t %-10d %8d %8d %-6s\n",
					p.Name, p.Type, p.Enabled, p.Priority, p.RateLimitHourly, p.RateLimitDaily, key)
			}
			return nil
		},
	}
}
