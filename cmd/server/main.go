package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"medmatch/internal/config"
	"medmatch/internal/platform/logging"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "medmatch",
		Short:         "Medical triage and doctor matching service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "optional YAML config file")

	load := func() (*config.Config, *zap.Logger, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, nil, err
		}
		log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return nil, nil, err
		}
		return cfg, log, nil
	}

	rootCmd.AddCommand(serveCmd(load))
	rootCmd.AddCommand(migrateCmd(load))
	rootCmd.AddCommand(ingestCmd(load))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type loader func() (*config.Config, *zap.Logger, error)
