// Package cmd provides the CLI commands for pinpoint.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pinpoint-search/pinpoint/internal/app"
	"github.com/pinpoint-search/pinpoint/internal/config"
	"github.com/pinpoint-search/pinpoint/internal/output"
	"github.com/pinpoint-search/pinpoint/pkg/version"
)

var (
	configPath string
	dataDir    string
	logLevel   string

	// out is the human-facing writer shared by all commands.
	out = output.New(os.Stdout)
)

// NewRootCmd creates the root command for the pinpoint CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pinpoint",
		Short: "Hybrid document search over dense vectors and BM25",
		Long: `Pinpoint ingests documents, splits them into overlapping passages,
and indexes each passage in both a dense vector index and a BM25
inverted index. Queries run both searches concurrently and fuse the
ranked lists into one result set.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("pinpoint version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (overrides config)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newDeleteCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the CLI with signal-aware context cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// loadConfig loads configuration and applies global flag overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	return cfg, nil
}

// openApp loads config and builds the component graph.
func openApp() (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Open(cfg)
}
