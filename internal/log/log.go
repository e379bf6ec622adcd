// Package log holds the process logger. Packages that accept a
// *slog.Logger get one from Component; everything else logs through the
// package-level helpers.
package log

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

var global atomic.Pointer[slog.Logger]

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel is case-insensitive. Anything unrecognised is info.
func ParseLevel(name string) slog.Level {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(name))]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// New logs to w at level, as JSON under GO_ENV=production and as
// key=value text otherwise.
func New(w io.Writer, level string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler = slog.NewTextHandler(w, opts)
	if os.Getenv("GO_ENV") == "production" {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h)
}

// Init installs the stdout logger and makes it slog's default. Later calls
// are ignored.
func Init(level string) {
	l := New(os.Stdout, level)
	if global.CompareAndSwap(nil, l) {
		slog.SetDefault(l)
	}
}

// L is the process logger, initialised at info on first use.
func L() *slog.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	Init("info")
	return global.Load()
}

// Component tags L with component=name.
func Component(name string) *slog.Logger { return L().With("component", name) }

// Discard drops every record.
func Discard() *slog.Logger { return slog.New(slog.DiscardHandler) }

func With(args ...any) *slog.Logger { return L().With(args...) }
func Debug(msg string, args ...any) { L().Debug(msg, args...) }
func Info(msg string, args ...any) { L().Info(msg, args...) }
func Warn(msg string, args ...any) { L().Warn(msg, args...) }
func Error(msg string, args ...any) { L().Error(msg, args...) }
