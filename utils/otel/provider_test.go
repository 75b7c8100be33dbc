package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		t.Setenv("OTEL_SERVICE_NAME", "")
		t.Setenv("OTEL_ENABLED", "")
		t.Setenv("OTEL_TRACE_SAMPLE_RATIO", "")
		t.Setenv("IDENTITY_BACKEND", "")

		cfg := ConfigFromEnv("shell")

		assert.Equal(t, "vhybz-auth", cfg.ServiceName)
		assert.True(t, cfg.Enabled)
		assert.Equal(t, 1.0, cfg.SampleRatio)
		assert.Equal(t, "http://localhost:4318", cfg.OTLPEndpoint)
		assert.Equal(t, "shell", cfg.Component)
		assert.Equal(t, "api", cfg.IdentityBackend)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("OTEL_SERVICE_NAME", "vhybz-shell")
		t.Setenv("OTEL_ENABLED", "false")
		t.Setenv("OTEL_TRACE_SAMPLE_RATIO", "0.25")
		t.Setenv("IDENTITY_BACKEND", "kratos")

		cfg := ConfigFromEnv("shell")

		assert.Equal(t, "vhybz-shell", cfg.ServiceName)
		assert.Equal(t, "kratos", cfg.IdentityBackend)
		assert.False(t, cfg.Enabled)
		assert.Equal(t, 0.25, cfg.SampleRatio)
	})

	t.Run("out of range ratio is ignored", func(t *testing.T) {
		t.Setenv("OTEL_TRACE_SAMPLE_RATIO", "3")
		assert.Equal(t, 1.0, ConfigFromEnv("shell").SampleRatio)
	})
}

func TestInitProvider_Disabled(t *testing.T) {
	shutdown, err := InitProvider(context.Background(), Config{
		ServiceName:  "test",
		Enabled:      false,
		OTLPEndpoint: "http://localhost:4318",
	})
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.NotNil(t, otel.GetTextMapPropagator())
}

func TestNewResource(t *testing.T) {
	res, err := newResource(context.Background(), Config{
		ServiceName:     "vhybz-auth",
		ServiceVersion:  "1.2.3",
		Environment:     "test",
		Component:       "shell",
		IdentityBackend: "kratos",
	})
	require.NoError(t, err)

	got := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		got[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "vhybz-auth", got["service.name"])
	assert.Equal(t, "shell", got[AttrComponent])
	assert.Equal(t, "kratos", got[AttrIdentityBackend])

	bare, err := newResource(context.Background(), Config{ServiceName: "vhybz-auth"})
	require.NoError(t, err)
	_, hasBackend := bare.Set().Value(AttrIdentityBackend)
	assert.False(t, hasBackend)
}

func TestSignalURL(t *testing.T) {
	tests := []struct {
		endpoint string
		want     string
	}{
		{"http://localhost:4318", "http://localhost:4318/v1/traces"},
		{"https://collector.example/", "https://collector.example/v1/traces"},
		{"http://collector:4318/otlp//", "http://collector:4318/otlp/v1/traces"},
	}
	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, signalURL(Config{OTLPEndpoint: tt.endpoint}, "traces"))
		})
	}
}

func TestRecordHelpers_NoopBeforeInit(t *testing.T) {
	original := Metrics
	Metrics = nil
	t.Cleanup(func() { Metrics = original })

	assert.NotPanics(t, func() {
		RecordGateDecision(context.Background(), "/admin", "FORBIDDEN")
		RecordIdentityFetch(context.Background(), "error")
		RecordLogoutFailure(context.Background())
	})
}

func TestRecordGateDecision(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	originalProvider := otel.GetMeterProvider()
	originalMetrics := Metrics
	otel.SetMeterProvider(provider)
	t.Cleanup(func() {
		otel.SetMeterProvider(originalProvider)
		Metrics = originalMetrics
	})

	require.NoError(t, InitMetrics())
	RecordGateDecision(context.Background(), "/admin", "FORBIDDEN")
	RecordGateDecision(context.Background(), "/admin", "FORBIDDEN")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "vhybz_gate_decisions_total" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	assert.Equal(t, int64(2), total)
}
