package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"vhybz-auth/internal/usecase"
	appmiddleware "vhybz-auth/middleware"
	"vhybz-auth/utils/logger"
	appotel "vhybz-auth/utils/otel"

	"github.com/labstack/echo/v4"
)

const (
	// DefaultGateWait bounds how long a request waits for the identity fetch
	// before the checking page is served instead.
	DefaultGateWait = 2 * time.Second

	checkingRefreshSeconds = "1"
)

// GateMiddleware renders each access gate decision for a protected route.
type GateMiddleware struct {
	gate  *usecase.AccessGate
	pages *PageHandler
	wait  time.Duration
	log   *logger.ContextLogger
}

// NewGateMiddleware creates the gate middleware. A non-positive wait uses DefaultGateWait.
func NewGateMiddleware(gate *usecase.AccessGate, pages *PageHandler, wait time.Duration, l *slog.Logger) *GateMiddleware {
	if wait <= 0 {
		wait = DefaultGateWait
	}
	if l == nil {
		l = slog.Default()
	}
	return &GateMiddleware{gate: gate, pages: pages, wait: wait, log: logger.NewContextLogger(l)}
}

// Protect guards a route. A non-empty fallback names the page template shown
// to logged-out visitors instead of redirecting them to the login page.
func (g *GateMiddleware) Protect(route usecase.Route, fallback string) echo.MiddlewareFunc {
	route.HasFallback = fallback != ""
	routeName := route.String()

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			waitCtx, cancel := context.WithTimeout(ctx, g.wait)
			state, out := g.gate.Resolve(waitCtx, route)
			cancel()

			decision := string(out.Decision)
			ctx = logger.WithRoute(ctx, routeName)
			ctx = logger.WithGateDecision(ctx, decision)
			if state.User != nil {
				ctx = logger.WithUserID(ctx, state.User.ID)
			}
			c.SetRequest(c.Request().WithContext(ctx))
			c.Set(appmiddleware.GateDecisionKey, decision)
			c.Set(authStateKey, state)

			appotel.RecordGateDecision(ctx, routeName, decision)
			g.log.WithContext(ctx).DebugContext(ctx, "gate decision", "outcome", out.String(), "path", c.Request().URL.Path)

			switch out.Decision {
			case usecase.DecisionChecking:
				c.Response().Header().Set("Refresh", checkingRefreshSeconds)
				return g.pages.render(c, http.StatusOK, "checking", "Checking session", "")

			case usecase.DecisionUnauthenticated:
				if out.UseFallback {
					return g.pages.render(c, http.StatusOK, fallback, "Sign in required", "")
				}
				return c.Redirect(http.StatusSeeOther, out.RedirectTo)

			case usecase.DecisionForbidden:
				g.log.WithContext(ctx).InfoContext(ctx, "access denied",
					"path", c.Request().URL.Path,
					"missing_permission", out.MissingPermission)
				return g.pages.render(c, http.StatusForbidden, "forbidden", "Access denied", out.Message)

			default:
				return next(c)
			}
		}
	}
}
