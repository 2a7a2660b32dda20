package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/wayfarer/internal/cli"
	"github.com/aretw0/wayfarer/internal/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "wayfarer",
	Short: "Wayfarer routes travel questions to a team of specialist responders",
	Long: `Wayfarer scores each utterance against a catalogue of responders, runs the
best candidates in parallel under a latency budget and merges their answers
into a single attributed reply.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to a wayfarer config file")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().Bool("log-json", false, "Write logs as JSON lines")
}

// loadConfig reads the config file and builds the logger every command shares.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	debug, _ := cmd.Flags().GetBool("debug")
	jsonLogs, _ := cmd.Flags().GetBool("log-json")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}
	if debug {
		cfg.Log.Level = "debug"
	}
	logger, err := cli.NewLogger(cfg.Log.Level, jsonLogs)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newRuntime loads the configuration and builds the engine.
func newRuntime(cmd *cobra.Command) (*cli.Runtime, *config.Config, *slog.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	if offline, _ := cmd.Flags().GetBool("offline"); offline {
		cfg.Gateway.Backend = config.BackendOffline
		cfg.Gateway.FallbackBackend = ""
	}
	rt, err := cli.NewRuntime(cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return rt, cfg, logger, nil
}
