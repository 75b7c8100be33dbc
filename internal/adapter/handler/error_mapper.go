package handler

import (
	"errors"
	"net/http"

	"vhybz-auth/internal/domain"

	"github.com/labstack/echo/v4"
)

// mapDomainError converts a domain error into an appropriate echo.HTTPError.
func mapDomainError(err error) *echo.HTTPError {
	switch {
	case domain.IsUnauthenticated(err):
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")

	case errors.Is(err, domain.ErrForbidden),
		errors.Is(err, domain.ErrCSRFInvalid):
		return echo.NewHTTPError(http.StatusForbidden, "access denied")

	case errors.Is(err, domain.ErrNetwork),
		errors.Is(err, domain.ErrMalformedIdentity):
		return echo.NewHTTPError(http.StatusBadGateway, "identity backend unavailable")

	case errors.Is(err, domain.ErrNavigationFailed):
		return echo.NewHTTPError(http.StatusBadGateway, "login provider unavailable")

	case errors.Is(err, domain.ErrCSRFSecretMissing):
		return echo.NewHTTPError(http.StatusInternalServerError, "token generation error")

	case errors.Is(err, domain.ErrRateLimited):
		return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")

	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "internal error")
	}
}
