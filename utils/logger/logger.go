package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

const bridgeName = "vhybz-auth"

const redacted = "[REDACTED]"

// sensitiveKeys never reach a log sink with their value.
var sensitiveKeys = map[string]struct{}{
	"cookie":         {},
	"set-cookie":     {},
	"session_cookie": {},
	"csrf_token":     {},
	"authorization":  {},
	"internal_auth":  {},
}

// Options selects the sinks and format of a logger.
type Options struct {
	Level slog.Level
	// OTel adds the OpenTelemetry log bridge next to the local writer.
	OTel bool
	// Text writes logfmt-style lines instead of JSON.
	Text bool
}

// LevelFromEnv reads LOG_LEVEL, using fallback when it is unset.
func LevelFromEnv(fallback slog.Level) slog.Level {
	raw := os.Getenv("LOG_LEVEL")
	if raw == "" {
		return fallback
	}
	return parseLevel(raw)
}

// Init installs the shell's JSON logger on stdout with optional OTel export.
func Init(enableOTel bool) *slog.Logger {
	return Setup(os.Stdout, Options{Level: LevelFromEnv(slog.LevelInfo), OTel: enableOTel})
}

// Setup builds a logger writing to w and installs it as the slog default and
// as GlobalContext.
func Setup(w io.Writer, opts Options) *slog.Logger {
	l := New(w, opts)
	slog.SetDefault(l)
	GlobalContext = NewContextLogger(l)
	return l
}

// New builds a logger without touching package globals.
func New(w io.Writer, opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: opts.Level, ReplaceAttr: redactAttr}

	var local slog.Handler
	if opts.Text {
		local = slog.NewTextHandler(w, handlerOpts)
	} else {
		local = slog.NewJSONHandler(w, handlerOpts)
	}

	handler := slog.Handler(NewContextHandler(local))
	if opts.OTel {
		handler = fanout{handler, NewContextHandler(newBridgeHandler(opts.Level))}
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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

func isSensitive(key string) bool {
	_, ok := sensitiveKeys[strings.ToLower(key)]
	return ok
}

func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if isSensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	return a
}

// bridgeHandler forwards records to the global OTel logger provider.
type bridgeHandler struct {
	logger log.Logger
	attrs  []slog.Attr
	groups []string
	level  slog.Level
}

func newBridgeHandler(level slog.Level) *bridgeHandler {
	return &bridgeHandler{
		logger: global.GetLoggerProvider().Logger(bridgeName),
		level:  level,
	}
}

func (h *bridgeHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *bridgeHandler) Handle(ctx context.Context, r slog.Record) error {
	rec := log.Record{}
	rec.SetTimestamp(r.Time)
	rec.SetBody(log.StringValue(r.Message))
	rec.SetSeverity(otelSeverity(r.Level))
	rec.SetSeverityText(r.Level.String())

	for _, attr := range h.attrs {
		rec.AddAttributes(otelKeyValues(h.groups, attr)...)
	}
	r.Attrs(func(a slog.Attr) bool {
		rec.AddAttributes(otelKeyValues(h.groups, a)...)
		return true
	})

	h.logger.Emit(ctx, rec)
	return nil
}

func (h *bridgeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &bridgeHandler{logger: h.logger, attrs: merged, groups: h.groups, level: h.level}
}

func (h *bridgeHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	groups := append(append([]string(nil), h.groups...), name)
	return &bridgeHandler{logger: h.logger, attrs: h.attrs, groups: groups, level: h.level}
}

func otelSeverity(level slog.Level) log.Severity {
	switch {
	case level >= slog.LevelError:
		return log.SeverityError
	case level >= slog.LevelWarn:
		return log.SeverityWarn
	case level >= slog.LevelInfo:
		return log.SeverityInfo
	default:
		return log.SeverityDebug
	}
}

// otelKeyValues converts one slog attribute, flattening groups into dotted keys.
func otelKeyValues(groups []string, a slog.Attr) []log.KeyValue {
	a.Value = a.Value.Resolve()
	key := strings.Join(append(append([]string(nil), groups...), a.Key), ".")

	if isSensitive(a.Key) {
		return []log.KeyValue{log.String(key, redacted)}
	}

	switch a.Value.Kind() {
	case slog.KindGroup:
		nested := append(append([]string(nil), groups...), a.Key)
		var out []log.KeyValue
		for _, child := range a.Value.Group() {
			out = append(out, otelKeyValues(nested, child)...)
		}
		return out
	case slog.KindString:
		return []log.KeyValue{log.String(key, a.Value.String())}
	case slog.KindInt64:
		return []log.KeyValue{log.Int64(key, a.Value.Int64())}
	case slog.KindUint64:
		return []log.KeyValue{log.Int64(key, int64(a.Value.Uint64()))}
	case slog.KindFloat64:
		return []log.KeyValue{log.Float64(key, a.Value.Float64())}
	case slog.KindBool:
		return []log.KeyValue{log.Bool(key, a.Value.Bool())}
	case slog.KindDuration:
		return []log.KeyValue{log.Int64(key, a.Value.Duration().Milliseconds())}
	case slog.KindTime:
		return []log.KeyValue{log.String(key, a.Value.Time().Format(time.RFC3339Nano))}
	default:
		if err, ok := a.Value.Any().(error); ok {
			return []log.KeyValue{log.String(key, err.Error())}
		}
		return []log.KeyValue{log.String(key, a.Value.String())}
	}
}

// fanout sends each record to every handler that accepts its level.
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
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			_ = h.Handle(ctx, r.Clone())
		}
	}
	return nil
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
