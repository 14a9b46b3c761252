package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/fuelsync/fuelsync/internal/config"
	"github.com/fuelsync/fuelsync/internal/connectivity"
	"github.com/fuelsync/fuelsync/internal/kv"
	"github.com/fuelsync/fuelsync/internal/logbook"
	"github.com/fuelsync/fuelsync/internal/remote"
	"github.com/fuelsync/fuelsync/internal/streak"
	"github.com/fuelsync/fuelsync/internal/syncqueue"
)

// app wires the services together once per invocation. Every service
// gets its collaborators injected; nothing here is a process global
// except the default slog handler.
type app struct {
	cfg     config.Config
	state   *kv.SQLite
	backend *remote.SQLiteStore
	monitor connectivity.Monitor

	queue   *syncqueue.Queue
	tracker *streak.Tracker
	engine  *logbook.Engine
}

// openApp loads config, configures logging, opens the local databases,
// and constructs the queue, tracker, and engine.
func openApp(opts *RootOptions) (*app, error) {
	cfg, err := config.Load(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	setupLogging(opts, cfg)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to create data dir", err)
	}

	state, err := kv.OpenSQLite(filepath.Join(cfg.DataDir, "state.db"))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open state database", err)
	}

	backend, err := remote.OpenSQLite(filepath.Join(cfg.DataDir, "remote.db"))
	if err != nil {
		state.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open remote database", err)
	}

	var monitor connectivity.Monitor
	switch {
	case opts.Offline:
		monitor = connectivity.NewManual(false)
	case cfg.ProbeURL != "":
		monitor = connectivity.NewProber(cfg.ProbeURL)
	default:
		monitor = connectivity.NewManual(true)
	}

	queue := syncqueue.New(state, backend, monitor)
	tracker := streak.New(backend, queue, monitor)
	engine := logbook.New(queue, backend, monitor, tracker)

	return &app{
		cfg:     cfg,
		state:   state,
		backend: backend,
		monitor: monitor,
		queue:   queue,
		tracker: tracker,
		engine:  engine,
	}, nil
}

// Close releases the local databases.
func (a *app) Close() {
	if err := a.backend.Close(); err != nil {
		slog.Error("error closing remote database", "error", err)
	}
	if err := a.state.Close(); err != nil {
		slog.Error("error closing state database", "error", err)
	}
}

// setupLogging configures the default slog handler: text on stderr,
// debug level under --verbose, optional rotating file output.
func setupLogging(opts *RootOptions, cfg config.Config) {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = os.Stderr
	if cfg.Log.File != "" {
		w = io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		})
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// flushIfPending attempts a flush when operations are queued and the
// device polls online, so every command doubles as a sync trigger.
func (a *app) flushIfPending(cmd *cobra.Command) {
	ctx := cmd.Context()
	if a.queue.Len(ctx) == 0 || !a.queue.CheckOnline(ctx) {
		return
	}
	res := a.queue.Flush(ctx)
	if res.Flushed+res.Failed+res.Dropped > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "synced: %d flushed, %d failed, %d dropped\n",
			res.Flushed, res.Failed, res.Dropped)
	}
}
