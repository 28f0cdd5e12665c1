package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/draftsmith/genpipe/pkg/cache/semantic"
)

func newCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the semantic cache",
	}
	cmd.AddCommand(newCacheStatsCmd(), newCachePurgeCmd())
	return cmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show semantic cache statistics from the snapshot",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			c := semantic.New(cfg.Semantic, logger)
			stats := c.Stats()
			embedder := "hash (unfitted)"
			if stats.EmbedderFitted {
				embedder = "tf-idf (fitted)"
			}
			fmt.Printf("entries:       %d\n", stats.Entries)
			fmt.Printf("threshold:     %.2f\n", stats.SimilarityThreshold)
			fmt.Printf("embedder:      %s\n", embedder)
			fmt.Printf("avg quality:   %.2f\n", stats.AvgQualityScore)
			fmt.Printf("avg age (h):   %.1f\n", stats.AvgAgeHours)
			return nil
		},
	}
}

func newCachePurgeCmd() *cobra.Command {
	var minQuality float64

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Drop snapshot entries below a quality score",
		RunE: func(_ *cobra.Command, _ []string) error {
			logger, err := newLogger()
			if err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			c := semantic.New(cfg.Semantic, logger)
			removed := c.PurgeBelowQuality(minQuality)
			if err := c.SaveSnapshot(); err != nil {
				return err
			}
			fmt.Printf("purged %d entries below quality %.2f\n", removed, minQuality)
			return nil
		},
	}

	cmd.Flags().Float64VarP(&minQuality, "min-quality", "q", 0.5, "minimum quality score to keep")
	return cmd
}
