package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/draftsmith/genpipe/pkg/experiment"
	"github.com/draftsmith/genpipe/pkg/models"
)

func newExperimentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "experiment",
		Aliases: []string{"exp"},
		Short:   "Manage A/B experiments",
	}
	cmd.AddCommand(
		newExperimentCreateCmd(),
		newExperimentListCmd(),
		newExperimentAnalyzeCmd(),
		newExperimentStopCmd(),
	)
	return cmd
}

func newEngine() (*experiment.Engine, error) {
	logger, err := newLogger()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return experiment.New(cfg.Experiments, logger), nil
}

func newExperimentCreateCmd() *cobra.Command {
	var name, metric string
	var variants []string
	var split []float64

	cmd := &cobra.Command{
		Use:   "create <id>",
		Short: "Create and activate an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			if len(variants) != len(split) {
				return fmt.Errorf("need one --split value per --variant (%d vs %d)", len(variants), len(split))
			}
			trafficSplit := make(map[string]float64, len(variants))
			for i, v := range variants {
				trafficSplit[v] = split[i]
			}

			engine, err := newEngine()
			if err != nil {
				return err
			}
			created, err := engine.Create(models.Experiment{
				ID:           args[0],
				Name:         name,
				Variants:     variants,
				TrafficSplit: trafficSplit,
				TargetMetric: metric,
				CreatedBy:    "cli",
			})
			if err != nil {
				return err
			}
			fmt.Printf("created experiment %s with variants %s\n",
				created.ID, strings.Join(created.Variants, ", "))
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "human-readable experiment name")
	cmd.Flags().StringVarP(&metric, "metric", "m", "quality_score", "target metric")
	cmd.Flags().StringSliceVarP(&variants, "variant", "v", []string{"control", "treatment"}, "variant names")
	cmd.Flags().Float64SliceVar(&split, "split", []float64{0.5, 0.5}, "traffic share per variant, must sum to 1.0")
	return cmd
}

func newExperimentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show active experiments",
		RunE: func(_ *cobra.Command, _ []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			summary := engine.Summary()
			fmt.Printf("%d experiments, %d active, %d events\n",
				summary.TotalExperiments, summary.ActiveCount, summary.TotalEvents)
			for _, e := range engine.ListActive() {
				fmt.Printf("  %-32s %-28s target=%s\n", e.ID, e.Name, e.TargetMetric)
			}
			return nil
		},
	}
}

func newExperimentAnalyzeCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "analyze <id>",
		Short: "Run the statistical analysis for an experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			res, err := engine.Analyze(args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			}

			fmt.Printf("experiment %s: %d events\n\n", res.Experiment.ID, res.TotalEvents)
			for v, s := range res.VariantStats {
				fmt.Printf("  %-16s n=%-5d mean=%.4f std=%.4f ci=[%.4f, %.4f]\n",
					v, s.Count, s.Mean, s.StdDev, s.CILower, s.CIUpper)
			}
			for _, p := range res.Pairwise {
				fmt.Printf("\n  %s vs %s: t=%.3f p=%.4f significant=%t d=%.3f\n",
					p.VariantA, p.VariantB, p.TStatistic, p.PValue, p.IsSignificant, p.CohensD)
			}
			if res.ANOVA != nil {
				fmt.Printf("\n  anova: F=%.3f p=%.4f significant=%t\n",
					res.ANOVA.FStatistic, res.ANOVA.PValue, res.ANOVA.IsSignificant)
			}
			if res.Winner != nil {
				fmt.Printf("\n  winner: %s (confidence %s) %s\n",
					res.Winner.Variant, res.Winner.Confidence, res.Winner.Reason)
			}
			fmt.Printf("\n  %s\n", res.SampleAdequacy.Recommendation)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json-output", false, "print the full analysis as JSON")
	return cmd
}

func newExperimentStopCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "stop <id>",
		Short: "Stop an active experiment",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			engine, err := newEngine()
			if err != nil {
				return err
			}
			if err := engine.Stop(args[0], reason); err != nil {
				return err
			}
			fmt.Printf("stopped experiment %s\n", args[0])
			return nil
		},
	}

	cmd.Flags().StringVarP(&reason, "reason", "r", "manual stop", "why the experiment is being stopped")
	return cmd
}
