package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/draftsmith/genpipe/pkg/config"
	"github.com/draftsmith/genpipe/pkg/logging"
)

var version = "dev"

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:     "genpipe",
		Short:   "genpipe is the resume generation reliability and experimentation pipeline",
		Version: version,
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is genpipe.yaml in the current directory)")
	root.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	root.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.SetEnvPrefix("GENPIPE")
	viper.AutomaticEnv()
	_ = viper.BindPFlag("debug", root.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("json", root.PersistentFlags().Lookup("json"))

	root.AddCommand(
		newServeCmd(),
		newGenerateCmd(),
		newProvidersCmd(),
		newCacheCmd(),
		newExperimentCmd(),
		newMCPCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	return logging.New(viper.GetBool("json"), viper.GetBool("debug"))
}

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("genpipe.yaml"); err == nil {
			path = "genpipe.yaml"
		}
	}
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}
