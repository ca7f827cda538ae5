// Package logging owns the process-wide slog setup and the context plumbing
// that lets request-scoped loggers reach services without threading a logger
// argument through every call.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

type ctxKey struct{}

// New builds the JSON logger the whole process shares. It also installs the
// logger as slog's default so FromContext has a sane fallback on contexts
// that never passed through the HTTP layer (startup, shutdown, background
// goroutines).
func New(level string) *slog.Logger {
	l := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(l)
	return l
}

// parseLevel maps the config string to a slog level. Unknown values mean
// info rather than an error: a typo in LOG_LEVEL should not take the
// service down.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IntoContext stores a logger in the context, usually one already carrying
// request_id and route attributes.
func IntoContext(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the request-scoped logger, or the process default when
// the context carries none.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}
