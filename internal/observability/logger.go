package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyEventID   ctxKey = "event_id"
	ctxKeyChannelID ctxKey = "channel_id"
)

// basic global logger, JSON to stdout.
var logger = slog.New(slog.NewJSONHandler(os.Stdout, nil))

func Logger() *slog.Logger {
	return logger
}

// Setup replaces the global logger. level is one of debug, info, warn, error.
func Setup(w io.Writer, level string) *slog.Logger {
	logger = slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)}))
	slog.SetDefault(logger)
	return logger
}

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

// WithFields returns a logger with additional fields.
func WithFields(kv ...any) *slog.Logger {
	return logger.With(kv...)
}

// WithEvent starts the logging scope of one inbound platform event: a fresh
// event_id plus the channel it belongs to.
func WithEvent(ctx context.Context, channelID string) context.Context {
	ctx = context.WithValue(ctx, ctxKeyEventID, uuid.NewString())
	return context.WithValue(ctx, ctxKeyChannelID, channelID)
}

// EventID returns the event id stored in ctx, if any.
func EventID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyEventID).(string)
	return id
}

// LoggerFromContext adds event_id and channel_id if present.
func LoggerFromContext(ctx context.Context) *slog.Logger {
	l := logger
	if id, _ := ctx.Value(ctxKeyEventID).(string); id != "" {
		l = l.With("event_id", id)
	}
	if ch, _ := ctx.Value(ctxKeyChannelID).(string); ch != "" {
		l = l.With("channel_id", ch)
	}
	return l
}
