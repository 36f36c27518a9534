// Package logger sets up structured JSON logging with log/slog and
// carries a per-evaluation cycle ID through context.Context so one
// hedge computation can be followed across venue calls and publishes.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
)

type ctxKey string

const cycleIDKey ctxKey = "cycle_id"

// Init creates the process logger. Output is JSON on stdout with the
// service name attached, and it becomes the slog default.
func Init(service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config string to a slog level. Unknown values
// fall back to info.
func ParseLevel(s string) slog.Level {
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

// ForAsset returns a logger scoped to one monitored asset.
func ForAsset(base *slog.Logger, asset string) *slog.Logger {
	return base.With(slog.String("asset", asset))
}

// WithCycleID stores an evaluation cycle ID in the context.
func WithCycleID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, cycleIDKey, id)
}

// CycleID extracts the cycle ID from context. Returns "" if not set.
func CycleID(ctx context.Context) string {
	if v, ok := ctx.Value(cycleIDKey).(string); ok {
		return v
	}
	return ""
}

// NewCycleID builds a cycle ID from the asset and wall-clock time.
// Format: "{asset}-{unixNano}".
func NewCycleID(asset string, ts time.Time) string {
	return fmt.Sprintf("%s-%d", asset, ts.UnixNano())
}

// CycleAttrs returns slog attributes for the cycle ID in ctx.
// Usage: slog.Info("msg", logger.CycleAttrs(ctx)...)
func CycleAttrs(ctx context.Context) []any {
	id := CycleID(ctx)
	if id == "" {
		return nil
	}
	return []any{slog.String("cycle_id", id)}
}
