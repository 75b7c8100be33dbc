package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics holds the auth subsystem's instruments.
type AuthMetrics struct {
	GateDecisions  metric.Int64Counter
	IdentityFetch  metric.Int64Counter
	LogoutFailures metric.Int64Counter
}

// Metrics is nil until InitMetrics runs; the Record helpers are no-ops until then.
var Metrics *AuthMetrics

// InitMetrics creates the instruments on the global meter provider.
func InitMetrics() error {
	meter := otel.Meter(defaultServiceName)

	gateDecisions, err := meter.Int64Counter("vhybz_gate_decisions_total",
		metric.WithDescription("Access gate decisions by outcome"),
	)
	if err != nil {
		return err
	}

	identityFetch, err := meter.Int64Counter("vhybz_identity_fetch_total",
		metric.WithDescription("Settled identity fetches by result"),
	)
	if err != nil {
		return err
	}

	logoutFailures, err := meter.Int64Counter("vhybz_logout_failures_total",
		metric.WithDescription("Logout calls rejected by the server"),
	)
	if err != nil {
		return err
	}

	Metrics = &AuthMetrics{
		GateDecisions:  gateDecisions,
		IdentityFetch:  identityFetch,
		LogoutFailures: logoutFailures,
	}
	return nil
}

// RecordGateDecision counts one gate decision for route.
func RecordGateDecision(ctx context.Context, route, decision string) {
	if Metrics == nil {
		return
	}
	Metrics.GateDecisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("route", route),
		attribute.String("decision", decision),
	))
}

// RecordIdentityFetch counts one settled fetch; result is authenticated,
// anonymous or error.
func RecordIdentityFetch(ctx context.Context, result string) {
	if Metrics == nil {
		return
	}
	Metrics.IdentityFetch.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

func RecordLogoutFailure(ctx context.Context) {
	if Metrics == nil {
		return
	}
	Metrics.LogoutFailures.Add(ctx, 1)
}
