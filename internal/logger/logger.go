package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"repo-watcher/internal/config"

	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Init initializes the default slog logger with the given configuration.
// The file handler always writes JSON; the stdout handler follows log.format.
// When neither a file nor stdout is configured, stdout is used anyway.
func Init(cfg *config.Config) {
	var handlers []slog.Handler
	level := getLogLevel(cfg.Log.Level)

	if cfg.Log.File != "" {
		// Create log directory if it doesn't exist
		logDir := filepath.Dir(cfg.Log.File)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			// Use fmt instead of slog since logger isn't initialized yet
			fmt.Printf("Failed to create log directory: %v\n", err)
		} else {
			// File handler with rotation
			handlers = append(handlers, slog.NewJSONHandler(&lumberjack.Logger{
				Filename:   cfg.Log.File,
				MaxSize:    cfg.Log.MaxSizeMB,
				MaxBackups: cfg.Log.MaxBackups,
				MaxAge:     cfg.Log.MaxAgeDays,
				Compress:   cfg.Log.Compress,
			}, &slog.HandlerOptions{Level: level}))
		}
	}

	if cfg.Log.Stdout || len(handlers) == 0 {
		handlers = append(handlers, newHandler(os.Stdout, cfg.Log.Format, level, stdoutIsTerminal()))
	}

	var logger *slog.Logger
	if len(handlers) > 1 {
		logger = slog.New(&MultiHandler{handlers: handlers})
	} else {
		logger = slog.New(handlers[0])
	}
	slog.SetDefault(logger)
}

// newHandler picks the handler for a console writer.
// An empty format means text on a terminal and JSON otherwise.
func newHandler(w io.Writer, format string, level slog.Level, tty bool) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "text":
		return slog.NewTextHandler(w, opts)
	case "json":
		return slog.NewJSONHandler(w, opts)
	}
	if tty {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

func stdoutIsTerminal() bool {
	fd := os.Stdout.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// MultiHandler writes to multiple handlers
type MultiHandler struct {
	handlers []slog.Handler
}

// Enabled returns true if any handler is enabled for the given level
func (h *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes the record to all handlers
func (h *MultiHandler) Handle(ctx context.Context, r slog.Record) error {
	var lastErr error
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, r.Level) {
			if err := handler.Handle(ctx, r.Clone()); err != nil {
				lastErr = err
			}
		}
	}
	return lastErr
}

// WithAttrs returns a new handler with the given attributes
func (h *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithAttrs(attrs)
	}
	return &MultiHandler{handlers: handlers}
}

// WithGroup returns a new handler with the given group
func (h *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		handlers[i] = handler.WithGroup(name)
	}
	return &MultiHandler{handlers: handlers}
}

// getLogLevel converts string level to slog.Level
func getLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
