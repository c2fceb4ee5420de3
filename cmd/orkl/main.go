package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/oriys/orkl/internal/config"
	"github.com/oriys/orkl/internal/logging"
	"github.com/oriys/orkl/internal/orkl"
)

var version = "0.1.0"

var (
	configPath string
	logLevel   string
	logFormat  string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "orkl",
		Short:         "ORKL threat intelligence MCP server and CLI",
		Long:          "Serve the ORKL threat intelligence API as MCP tools over stdio, or query it directly",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (JSON or YAML); defaults to $ORKL_CONFIG_FILE")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json")

	rootCmd.AddCommand(
		serveCmd(),
		reportsCmd(),
		reportCmd(),
		reportByHashCmd(),
		searchCmd(),
		infoCmd(),
		libraryVersionCmd(),
		versionEntriesCmd(),
		workEntriesCmd(),
		actorsCmd(),
		actorCmd(),
		sourcesCmd(),
		sourceCmd(),
	)
	return rootCmd
}

// loadConfig resolves configuration, applies command-line overrides and
// sets up operational logging.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if err := logging.InitStructured(os.Stderr, cfg.Log.Format, cfg.Log.Level); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newClient(cfg config.Config) (*orkl.Client, error) {
	requests := logging.Default()
	if cfg.Log.RequestLogFile != "" {
		if err := requests.SetOutput(cfg.Log.RequestLogFile); err != nil {
			return nil, err
		}
	}
	if logging.DebugEnabled() {
		requests.SetConsole(os.Stderr)
	}
	return orkl.New(cfg, orkl.WithRequestLogger(requests))
}
