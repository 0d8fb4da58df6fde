// Package cmd provides the mem-oracled CLI commands.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/JagjeevanAK/mem-oracle/internal/logging"
	"github.com/JagjeevanAK/mem-oracle/pkg/version"
)

var (
	dataDir   string
	debugMode bool

	loggingCleanup func()
)

// NewRootCmd builds the root command for the mem-oracled CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mem-oracled",
		Short: "Local documentation-oracle worker",
		Long: `mem-oracled crawls public documentation sites, chunks and embeds their
pages, and answers natural-language queries over them via hybrid
dense+keyword retrieval.

It exposes an HTTP worker API and a JSON-RPC-over-stdio tool surface for
integration with other tools.`,
		Version: version.Version,
	}

	cmd.SetVersionTemplate("mem-oracled version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for config, metadata, vectors, and cache (default: $HOME/.mem-oracle)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug-level logging (log file: $HOME/.mem-oracle/logs/worker.log)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newRPCCmd())
	cmd.AddCommand(newDaemonCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startLogging(_ *cobra.Command, _ []string) error {
	logCfg := logging.DefaultConfig()
	if debugMode {
		logCfg = logging.DebugConfig()
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}
