package logger

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/trace"
)

// ContextHandler stamps records logged with a context: trace_id and span_id
// from the active span, plus the request and auth keys set by the With*
// helpers. Keys already bound with WithAttrs or present on the record are
// left alone, so a ContextLogger on top does not duplicate them.
type ContextHandler struct {
	inner slog.Handler
	bound map[string]struct{}
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if ctx == nil {
		return h.inner.Handle(ctx, r)
	}

	seen := make(map[string]struct{}, r.NumAttrs())
	r.Attrs(func(a slog.Attr) bool {
		seen[a.Key] = struct{}{}
		return true
	})
	missing := func(key string) bool {
		_, onRecord := seen[key]
		_, onHandler := h.bound[key]
		return !onRecord && !onHandler
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() && missing("trace_id") {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	for _, key := range contextKeys {
		if v, ok := ctx.Value(key).(string); ok && v != "" && missing(string(key)) {
			r.AddAttrs(slog.String(string(key), v))
		}
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]struct{}, len(h.bound)+len(attrs))
	for k := range h.bound {
		bound[k] = struct{}{}
	}
	for _, a := range attrs {
		bound[a.Key] = struct{}{}
	}
	return &ContextHandler{inner: h.inner.WithAttrs(attrs), bound: bound}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name), bound: h.bound}
}
