package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/JagjeevanAK/mem-oracle/internal/config"
	"github.com/JagjeevanAK/mem-oracle/internal/daemon"
)

func newDaemonCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the worker as a background process",
		Long: `The daemon subcommands run the same worker as 'mem-oracled start', but
detached from the current terminal.

Commands:
  start   Start the worker in the background
  stop    Stop the running worker
  status  Show whether the worker is running and reachable`,
	}

	cmd.AddCommand(newDaemonStartCmd())
	cmd.AddCommand(newDaemonStopCmd())
	cmd.AddCommand(newDaemonStatusCmd())
	return cmd
}

func newDaemonStartCmd() *cobra.Command {
	var foreground bool
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the worker in the background",
		RunE: func(cmd *cobra.Command, args []string) error {
			if foreground {
				return runStart(cmd.Context(), cmd)
			}
			return runDaemonStart(cmd)
		},
	}
	cmd.Flags().BoolVarP(&foreground, "foreground", "f", false, "Run in foreground instead of detaching")
	return cmd
}

func newDaemonStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the running worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStop(cmd)
		},
	}
}

func newDaemonStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether the worker is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemonStatus(cmd)
		},
	}
}

func pidFilePath() string {
	return filepath.Join(resolvedDataDir(), "worker.pid")
}

func runDaemonStart(cmd *cobra.Command) error {
	pidFile := daemon.NewPIDFile(pidFilePath())
	if pidFile.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "worker is already running")
		return nil
	}

	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("find executable path: %w", err)
	}

	args := []string{"start"}
	if dataDir != "" {
		args = append(args, "--data-dir", dataDir)
	}
	if debugMode {
		args = append(args, "--debug")
	}

	bgCmd := exec.Command(execPath, args...)
	bgCmd.Stdout = nil
	bgCmd.Stderr = nil
	bgCmd.Stdin = nil
	bgCmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := bgCmd.Start(); err != nil {
		return fmt.Errorf("start worker process: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- bgCmd.Wait() }()

	for i := 0; i < 20; i++ {
		select {
		case err := <-done:
			if err != nil {
				return fmt.Errorf("worker process exited unexpectedly: %w", err)
			}
			return fmt.Errorf("worker process exited unexpectedly with no error")
		default:
		}
		time.Sleep(100 * time.Millisecond)
		if pidFile.IsRunning() {
			fmt.Fprintf(cmd.OutOrStdout(), "worker started (pid: %d)\n", bgCmd.Process.Pid)
			return nil
		}
	}
	return fmt.Errorf("worker did not become ready within timeout")
}

func runDaemonStop(cmd *cobra.Command) error {
	pidFile := daemon.NewPIDFile(pidFilePath())
	if !pidFile.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "worker is not running")
		return nil
	}

	pid, err := pidFile.Read()
	if err != nil {
		return fmt.Errorf("read pidfile: %w", err)
	}

	if err := pidFile.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal worker: %w", err)
	}

	for i := 0; i < 50; i++ {
		time.Sleep(100 * time.Millisecond)
		if !pidFile.IsRunning() {
			fmt.Fprintf(cmd.OutOrStdout(), "worker stopped (was pid: %d)\n", pid)
			return nil
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), "worker not responding, sending SIGKILL...")
	if err := pidFile.Signal(syscall.SIGKILL); err != nil {
		return fmt.Errorf("kill worker: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "worker killed")
	return nil
}

func runDaemonStatus(cmd *cobra.Command) error {
	pidFile := daemon.NewPIDFile(pidFilePath())
	if !pidFile.IsRunning() {
		fmt.Fprintln(cmd.OutOrStdout(), "worker is not running")
		return nil
	}

	pid, _ := pidFile.Read()
	fmt.Fprintf(cmd.OutOrStdout(), "worker is running (pid: %d)\n", pid)

	cfg, err := config.Load(resolvedDataDir())
	if err != nil {
		return nil
	}

	url := fmt.Sprintf("http://%s:%d/health", cfg.Worker.Host, cfg.Worker.Port)
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), "worker process is alive but not reachable over HTTP yet")
		return nil
	}
	defer resp.Body.Close()
	fmt.Fprintf(cmd.OutOrStdout(), "HTTP worker API reachable at %s (status %d)\n", url, resp.StatusCode)
	return nil
}
