package middleware

import (
	"log/slog"
	"net"
	"net/http"

	"github.com/labstack/echo/v4"
)

// LoopbackOnly admits only requests whose TCP peer is a loopback address.
// It reads the connection's RemoteAddr and ignores forwarding headers, which
// any client can set.
func LoopbackOnly() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !isLoopbackPeer(c.Request().RemoteAddr) {
				slog.WarnContext(c.Request().Context(), "non-loopback peer rejected",
					"remote_addr", c.Request().RemoteAddr,
					"path", c.Path(),
				)
				return echo.NewHTTPError(http.StatusForbidden, "internal endpoints are loopback only")
			}
			return next(c)
		}
	}
}

func isLoopbackPeer(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
