// Package logging builds the slog logger for a run: a console handler at the
// chosen level and, optionally, a debug-level log file per run.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type Options struct {
	Level   slog.Level
	Console io.Writer // defaults to os.Stderr
	// Dir, when set, receives log<YYYY-MM-DD_HHMM>.txt at debug level.
	Dir string
	Now func() time.Time
}

// New returns the logger and a close function for the log file.
func New(opts Options) (*slog.Logger, func() error, error) {
	if opts.Console == nil {
		opts.Console = os.Stderr
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	console := slog.NewTextHandler(opts.Console, &slog.HandlerOptions{Level: opts.Level})
	if opts.Dir == "" {
		return slog.New(console), func() error { return nil }, nil
	}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("create log directory: %w", err)
	}
	path := filepath.Join(opts.Dir, FileName(opts.Now()))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	file := slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug, AddSource: true})
	return slog.New(tee{console, file}), f.Close, nil
}

// FileName is the per-run log file name for t.
func FileName(t time.Time) string {
	return "log" + t.Format("2006-01-02_1504") + ".txt"
}

// tee sends each record to every handler enabled for its level.
type tee []slog.Handler

func (t tee) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (t tee) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (t tee) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t tee) WithGroup(name string) slog.Handler {
	out := make(tee, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
