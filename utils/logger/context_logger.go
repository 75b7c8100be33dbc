package logger

import (
	"context"
	"log/slog"
	"time"
)

type ContextKey string

const (
	RequestIDKey    ContextKey = "request_id"
	UserIDKey       ContextKey = "user_id"
	RouteKey        ContextKey = "vhybz.route"
	GateDecisionKey ContextKey = "vhybz.gate.decision"
	HostKey         ContextKey = "vhybz.host"
)

var contextKeys = []ContextKey{RequestIDKey, UserIDKey, RouteKey, GateDecisionKey, HostKey}

// GlobalContext is set by Init.
var GlobalContext *ContextLogger

// ContextLogger adds request and auth context values to log records.
type ContextLogger struct {
	logger *slog.Logger
}

func NewContextLogger(logger *slog.Logger) *ContextLogger {
	return &ContextLogger{logger: logger}
}

// WithContext returns a logger carrying every known context value set on ctx.
func (cl *ContextLogger) WithContext(ctx context.Context) *slog.Logger {
	args := make([]any, 0, len(contextKeys)*2)
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			args = append(args, string(key), v)
		}
	}
	return cl.logger.With(args...)
}

func (cl *ContextLogger) LogDuration(ctx context.Context, operation string, duration time.Duration) {
	cl.WithContext(ctx).InfoContext(ctx, "operation completed",
		"operation", operation,
		"duration_ms", duration.Milliseconds(),
	)
}

func (cl *ContextLogger) LogError(ctx context.Context, operation string, err error) {
	cl.WithContext(ctx).ErrorContext(ctx, "operation failed",
		"operation", operation,
		"error", err,
	)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

func WithRoute(ctx context.Context, route string) context.Context {
	return context.WithValue(ctx, RouteKey, route)
}

func WithGateDecision(ctx context.Context, decision string) context.Context {
	return context.WithValue(ctx, GateDecisionKey, decision)
}

func WithHost(ctx context.Context, host string) context.Context {
	return context.WithValue(ctx, HostKey, host)
}
