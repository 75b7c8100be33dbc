package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

const internalAuthHeader = "X-Internal-Auth"

// InternalAuth guards the shell's internal endpoints with a shared secret.
// secrets is a comma-separated list so a new secret can be rolled out before
// the old one is retired. Every candidate is compared in constant time.
// An empty list rejects every request.
func InternalAuth(secrets string) echo.MiddlewareFunc {
	accepted := splitSecrets(secrets)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if len(accepted) == 0 {
				slog.ErrorContext(ctx, "internal endpoint called without configured secret", "path", c.Path())
				return echo.NewHTTPError(http.StatusServiceUnavailable, "internal auth not configured")
			}

			provided := []byte(c.Request().Header.Get(internalAuthHeader))
			if len(provided) == 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing internal auth header")
			}

			match := 0
			for _, secret := range accepted {
				match |= subtle.ConstantTimeCompare(provided, secret)
			}
			if match != 1 {
				slog.WarnContext(ctx, "internal auth rejected", "remote_addr", c.RealIP(), "path", c.Path())
				return echo.NewHTTPError(http.StatusForbidden, "invalid internal auth")
			}
			return next(c)
		}
	}
}

func splitSecrets(raw string) [][]byte {
	var out [][]byte
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, []byte(s))
		}
	}
	return out
}
