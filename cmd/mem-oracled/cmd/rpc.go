package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/JagjeevanAK/mem-oracle/internal/jsonrpc"
)

func newRPCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rpc",
		Short: "Serve the JSON-RPC tool surface over stdio",
		Long: `Reads line-delimited JSON-RPC 2.0 requests from stdin and writes
line-delimited responses to stdout: initialize, tools/list, and
tools/call over search_docs, get_snippets, index_docs, and index_status.

Intended to be driven by another process's stdio pipe, not a terminal.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRPC(cmd)
		},
	}
}

func runRPC(cmd *cobra.Command) error {
	e, _, cleanup, err := buildEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := e.RecoverFromCrash(cmd.Context()); err != nil {
		slog.Warn("crash_recovery_failed", slog.String("error", err.Error()))
	}

	srv := jsonrpc.New(e, slog.Default())
	return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
}
