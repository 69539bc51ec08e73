package observability

import (
	"context"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger so call sites don't import log/slog directly.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

func init() {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	GlobalLogger = &Logger{Logger: slog.New(handler)}
}

type logContextKey string

const correlationIDKey logContextKey = "correlation_id"

// WithCorrelationID returns a new context carrying a request/connection
// correlation id, echoed on every log line derived from that context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// NewCorrelationID mints a fresh correlation id.
func NewCorrelationID() string {
	return uuid.NewString()
}

func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// FanoutLogger provides structured logging for WebSocket connection
// lifecycle and dispatch events.
type FanoutLogger struct {
	logger *Logger
}

func NewFanoutLogger() *FanoutLogger {
	return &FanoutLogger{logger: GlobalLogger}
}

func (l *FanoutLogger) LogConnect(ctx context.Context, connID string, userID uuid.UUID, anonymous bool) {
	l.logger.InfoContext(ctx, "websocket connected",
		slog.String("conn_id", connID),
		slog.String("user_id", userID.String()),
		slog.Bool("anonymous", anonymous),
		slog.String("correlation_id", correlationID(ctx)),
	)
}

func (l *FanoutLogger) LogDisconnect(ctx context.Context, connID string, reason string) {
	l.logger.InfoContext(ctx, "websocket disconnected",
		slog.String("conn_id", connID),
		slog.String("reason", reason),
		slog.String("correlation_id", correlationID(ctx)),
	)
}

func (l *FanoutLogger) LogSubscribe(ctx context.Context, connID string, pageID uuid.UUID) {
	l.logger.InfoContext(ctx, "websocket subscribe",
		slog.String("conn_id", connID),
		slog.String("page_id", pageID.String()),
		slog.String("correlation_id", correlationID(ctx)),
	)
}

func (l *FanoutLogger) LogError(ctx context.Context, connID string, eventType string, err error) {
	l.logger.ErrorContext(ctx, "websocket error",
		slog.String("conn_id", connID),
		slog.String("event_type", eventType),
		slog.String("error", err.Error()),
		slog.String("correlation_id", correlationID(ctx)),
	)
}

// EngineLogger provides structured logging for page-tree mutations.
type EngineLogger struct {
	logger *Logger
}

func NewEngineLogger() *EngineLogger {
	return &EngineLogger{logger: GlobalLogger}
}

func (l *EngineLogger) LogMutation(ctx context.Context, op string, pageID uuid.UUID, fields map[string]any) {
	attrs := []any{
		slog.String("operation", op),
		slog.String("page_id", pageID.String()),
		slog.String("correlation_id", correlationID(ctx)),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	l.logger.InfoContext(ctx, "page tree mutation", attrs...)
}

func (l *EngineLogger) LogError(ctx context.Context, op string, pageID uuid.UUID, err error) {
	l.logger.ErrorContext(ctx, "page tree error",
		slog.String("operation", op),
		slog.String("page_id", pageID.String()),
		slog.String("error", err.Error()),
		slog.String("correlation_id", correlationID(ctx)),
	)
}
