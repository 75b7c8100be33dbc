package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	original := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(original) })

	return recorder
}

// runTraced executes handler under OTelStatusMiddleware inside a test span
// and returns the finished span.
func runTraced(t *testing.T, handler echo.HandlerFunc) (sdktrace.ReadOnlySpan, *httptest.ResponseRecorder, error) {
	t.Helper()
	recorder := setupTestTracer(t)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/assistant", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	ctx, span := otel.Tracer("test").Start(req.Context(), "test-span")
	c.SetRequest(req.WithContext(ctx))

	err := OTelStatusMiddleware()(handler)(c)
	span.End()

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	return spans[0], rec, err
}

func attrValue(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestOTelStatusMiddleware_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		expectCode codes.Code
	}{
		{"2xx leaves status unset", http.StatusOK, codes.Unset},
		{"redirect to login leaves status unset", http.StatusSeeOther, codes.Unset},
		{"forbidden leaves status unset", http.StatusForbidden, codes.Unset},
		{"5xx marks error", http.StatusBadGateway, codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			span, rec, err := runTraced(t, func(c echo.Context) error {
				return c.NoContent(tt.status)
			})

			require.NoError(t, err)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.expectCode, span.Status().Code)

			v, ok := attrValue(span, "http.response.status_code")
			require.True(t, ok, "http.response.status_code attribute not found")
			assert.Equal(t, int64(tt.status), v.AsInt64())
		})
	}
}

func TestOTelStatusMiddleware_5xxWithError_RecordsError(t *testing.T) {
	testErr := errors.New("identity backend unreachable")

	span, _, err := runTraced(t, func(c echo.Context) error {
		c.Response().WriteHeader(http.StatusInternalServerError)
		return testErr
	})

	assert.Equal(t, testErr, err)
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "Internal Server Error", span.Status().Description)

	var found bool
	for _, event := range span.Events() {
		if event.Name == "exception" {
			found = true
		}
	}
	assert.True(t, found, "exception event not found in span")
}

func TestOTelStatusMiddleware_GateDecision(t *testing.T) {
	span, _, err := runTraced(t, func(c echo.Context) error {
		c.Set(GateDecisionKey, "FORBIDDEN")
		return c.NoContent(http.StatusForbidden)
	})

	require.NoError(t, err)
	v, ok := attrValue(span, "vhybz.gate.decision")
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", v.AsString())
}

func TestOTelStatusMiddleware_NoSpanInContext(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := OTelStatusMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "healthy")
	})(c)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}
