package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JagjeevanAK/mem-oracle/internal/daemon"
	"github.com/JagjeevanAK/mem-oracle/internal/httpapi"
)

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the worker in the foreground",
		Long: `Start runs the HTTP worker API in the foreground, blocking until
interrupted. It acquires an exclusive pidfile lock first, so a second
invocation against the same data directory fails fast instead of binding
a conflicting listener.

Use 'mem-oracled daemon start' to run the same worker detached in the
background.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd.Context(), cmd)
		},
	}
	return cmd
}

func runStart(ctx context.Context, cmd *cobra.Command) error {
	e, cfg, cleanup, err := buildEngine()
	if err != nil {
		return err
	}
	defer cleanup()

	pidFile := daemon.NewPIDFile(filepath.Join(resolvedDataDir(), "worker.pid"))
	if err := pidFile.Acquire(); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return fmt.Errorf("mem-oracled is already running against %s", resolvedDataDir())
		}
		return err
	}
	defer pidFile.Release()

	if err := e.RecoverFromCrash(ctx); err != nil {
		slog.Warn("crash_recovery_failed", slog.String("error", err.Error()))
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := httpapi.New(e, cfg, slog.Default())
	fmt.Fprintf(cmd.OutOrStdout(), "mem-oracled listening on %s:%d (data dir %s)\n", cfg.Worker.Host, cfg.Worker.Port, resolvedDataDir())
	return server.Start(ctx)
}
