// Package log is the structured logger used across docserve. It is a thin
// interface over log/slog so call sites always pass a context (for trace
// correlation) and errors are logged with their chain and origin.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger takes alternating key/value pairs after the message. Keys must be
// strings; anything else, and a dangling key, is dropped.
type Logger interface {
	// With returns a child logger carrying kv on every record.
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	// Error records err with its type, chain and, when enabled, the frame
	// each layer was wrapped at. err may be nil.
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

type Options struct {
	// App is required. Version, Commit and BuildID are added to every record when set.
	App     string
	Version string
	Commit  string
	BuildID string

	Level slog.Level
	// records at or above this level get a stack attribute, defaults to error
	StacktraceLevel slog.Level
	JSON            bool

	IncludeErrorLinks bool
	// defaults to 8
	MaxErrorLinks int

	Writer io.Writer // defaults to stdout
}

func New(opts Options) (Logger, error) {
	if strings.TrimSpace(opts.App) == "" {
		return nil, fmt.Errorf("log: app name is required")
	}
	return newSlog(opts)
}

var levels = map[string]slog.Level{
	"debug":   slog.LevelDebug,
	"info":    slog.LevelInfo,
	"warn":    slog.LevelWarn,
	"warning": slog.LevelWarn,
	"error":   slog.LevelError,
}

// ParseLevel accepts debug|info|warn|error, case and whitespace insensitive.
func ParseLevel(s string) (slog.Level, error) {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return 0, fmt.Errorf("unknown log level %q (valid levels are debug|info|warn|error)", s)
}
