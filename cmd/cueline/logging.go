package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	lj "gopkg.in/natefinch/lumberjack.v2"

	"github.com/MrWong99/cueline/internal/config"
)

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// useJSON resolves the "auto" format: text for a person at a terminal,
// JSON for anything that collects logs.
func useJSON(format config.LogFormat, w io.Writer) bool {
	switch format {
	case config.LogFormatJSON:
		return true
	case config.LogFormatText:
		return false
	}
	return !isTerminal(w)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newLogger builds the process logger. level is shared so the config
// watcher can change verbosity at runtime. When cfg names a log file, JSON
// records are also written there with rotation. The returned func closes
// the file.
func newLogger(cfg config.ServerConfig, level *slog.LevelVar, stderr io.Writer) (*slog.Logger, func() error) {
	level.Set(slogLevel(cfg.LogLevel))
	opts := &slog.HandlerOptions{Level: level}

	var console slog.Handler
	if useJSON(cfg.LogFormat, stderr) {
		console = slog.NewJSONHandler(stderr, opts)
	} else {
		console = slog.NewTextHandler(stderr, opts)
	}

	if cfg.LogFile == "" {
		return slog.New(console), func() error { return nil }
	}

	w := &lj.Logger{Filename: cfg.LogFile, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
	file := slog.NewJSONHandler(w, opts)
	return slog.New(fanout{console, file}), w.Close
}

// fanout sends each record to every handler.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
