package otel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

const defaultServiceName = "vhybz-auth"

// Resource attributes identifying which shell process and identity backend
// produced a signal.
const (
	AttrIdentityBackend = attribute.Key("vhybz.identity_backend")
	AttrComponent       = attribute.Key("vhybz.component")
)

const (
	batchTimeout   = 5 * time.Second
	batchSize      = 512
	metricInterval = 15 * time.Second
)

// Config holds OpenTelemetry configuration.
type Config struct {
	ServiceName     string
	ServiceVersion  string
	Environment     string
	Component       string // "shell" or "cli"
	IdentityBackend string // mirrors IDENTITY_BACKEND
	OTLPEndpoint    string // scheme selects TLS: http:// exports in plaintext
	Enabled         bool
	SampleRatio     float64
}

// ConfigFromEnv reads OTel settings from the environment for component.
func ConfigFromEnv(component string) Config {
	sampleRatio := 1.0
	if v := os.Getenv("OTEL_TRACE_SAMPLE_RATIO"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			sampleRatio = f
		}
	}
	return Config{
		ServiceName:     getEnv("OTEL_SERVICE_NAME", defaultServiceName),
		ServiceVersion:  getEnv("SERVICE_VERSION", "0.0.0"),
		Environment:     getEnv("DEPLOYMENT_ENV", "development"),
		Component:       component,
		IdentityBackend: getEnv("IDENTITY_BACKEND", "api"),
		OTLPEndpoint:    getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4318"),
		Enabled:         getEnv("OTEL_ENABLED", "true") == "true",
		SampleRatio:     sampleRatio,
	}
}

// ShutdownFunc flushes and stops the providers.
type ShutdownFunc func(context.Context) error

// InitProvider installs the global tracer, logger and meter providers and the W3C
// propagator. When disabled it installs only the propagator, so outgoing
// identity requests still carry any incoming trace context. A provider that
// fails to start shuts down the ones already running.
func InitProvider(ctx context.Context, cfg Config) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	var shutdowns []ShutdownFunc
	shutdown := func(ctx context.Context) error {
		var errs []error
		for i := len(shutdowns) - 1; i >= 0; i-- {
			errs = append(errs, shutdowns[i](ctx))
		}
		return errors.Join(errs...)
	}
	fail := func(step string, err error) (ShutdownFunc, error) {
		return nil, errors.Join(fmt.Errorf("failed to init %s: %w", step, err), shutdown(ctx))
	}

	tp, err := newTracerProvider(ctx, cfg, res)
	if err != nil {
		return fail("tracer provider", err)
	}
	otel.SetTracerProvider(tp)
	shutdowns = append(shutdowns, tp.Shutdown)

	lp, err := newLoggerProvider(ctx, cfg, res)
	if err != nil {
		return fail("logger provider", err)
	}
	global.SetLoggerProvider(lp)
	shutdowns = append(shutdowns, lp.Shutdown)

	mp, err := newMeterProvider(ctx, cfg, res)
	if err != nil {
		return fail("meter provider", err)
	}
	otel.SetMeterProvider(mp)
	shutdowns = append(shutdowns, mp.Shutdown)

	if err := InitMetrics(); err != nil {
		return fail("metrics", err)
	}
	return shutdown, nil
}

// newResource describes the process. Component and backend are left out when
// empty.
func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.ServiceVersion),
		semconv.DeploymentEnvironment(cfg.Environment),
	}
	if cfg.Component != "" {
		attrs = append(attrs, AttrComponent.String(cfg.Component))
	}
	if cfg.IdentityBackend != "" {
		attrs = append(attrs, AttrIdentityBackend.String(cfg.IdentityBackend))
	}
	return resource.New(ctx,
		resource.WithAttributes(attrs...),
		resource.WithHost(),
		resource.WithProcess(),
	)
}

func newTracerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(signalURL(cfg, "traces")))
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter,
			sdktrace.WithBatchTimeout(batchTimeout),
			sdktrace.WithMaxExportBatchSize(batchSize),
		),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	), nil
}

func newLoggerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(signalURL(cfg, "logs")))
	if err != nil {
		return nil, err
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter,
			sdklog.WithExportInterval(batchTimeout),
			sdklog.WithExportMaxBatchSize(batchSize),
		)),
		sdklog.WithResource(res),
	), nil
}

func newMeterProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetrichttp.New(ctx, otlpmetrichttp.WithEndpointURL(signalURL(cfg, "metrics")))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(metricInterval))),
		sdkmetric.WithResource(res),
	), nil
}

// signalURL joins the collector base URL with the OTLP/HTTP path for signal.
func signalURL(cfg Config, signal string) string {
	return strings.TrimRight(cfg.OTLPEndpoint, "/") + "/v1/" + signal
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
