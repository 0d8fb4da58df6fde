package logging

import (
	"log/slog"
)

// SetupStdioMode initializes logging for JSON-RPC-over-stdio mode.
// This is critical for wire-protocol compliance:
// - Logs ONLY to file (never stdout/stderr)
// - Uses JSON format for structured logs
// - Always enables debug level for complete diagnostics
//
// The JSON-RPC transport owns stdout exclusively for protocol frames. Any
// write to stdout/stderr while the transport is attached corrupts the
// stream and surfaces to the caller as a broken-pipe or decode error.
func SetupStdioMode() (func(), error) {
	cfg := Config{
		Level:         "debug", // Always debug in stdio mode for full diagnostics
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // CRITICAL: never write to stderr while stdio owns the stream
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)

	slog.Info("stdio mode logging initialized",
		slog.String("log_file", cfg.FilePath),
		slog.String("level", cfg.Level),
		slog.Bool("stderr_disabled", true))

	return cleanup, nil
}

// SetupStdioModeWithLevel initializes stdio-safe logging with a specific level.
func SetupStdioModeWithLevel(level string) (func(), error) {
	cfg := Config{
		Level:         level,
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: false, // CRITICAL: never write to stderr while stdio owns the stream
	}

	logger, cleanup, err := Setup(cfg)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger)
	return cleanup, nil
}
