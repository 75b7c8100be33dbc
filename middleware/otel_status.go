package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// GateDecisionKey is the echo.Context key under which the gate stores its decision.
const GateDecisionKey = "gate_decision"

// OTelStatusMiddleware sets span status from the response code after the
// handler ran. Only 5xx marks the span as an error; 4xx, redirects and
// gate denials are normal outcomes for an auth shell.
// Install it after otelecho.Middleware, which creates the span.
func OTelStatusMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			span := trace.SpanFromContext(c.Request().Context())
			if !span.SpanContext().IsValid() {
				return err
			}

			status := c.Response().Status
			span.SetAttributes(semconv.HTTPResponseStatusCode(status))

			if decision, ok := c.Get(GateDecisionKey).(string); ok && decision != "" {
				span.SetAttributes(attribute.String("vhybz.gate.decision", decision))
			}

			if status >= 500 {
				span.SetStatus(codes.Error, http.StatusText(status))
				if err != nil {
					span.RecordError(err)
				}
			}

			return err
		}
	}
}
