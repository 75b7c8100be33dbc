package handler

import (
	"log/slog"
	"net/http"

	"vhybz-auth/internal/domain"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

const (
	visitorCookieName = "vhybz_visitor"
	csrfFormField     = "csrf_token"
	csrfHeader        = "X-CSRF-Token"
)

// CSRFGuard binds form tokens to a per-browser visitor cookie.
type CSRFGuard struct {
	gen    domain.CSRFTokenGenerator
	secure bool
}

// NewCSRFGuard creates a guard. secure marks the visitor cookie Secure.
func NewCSRFGuard(gen domain.CSRFTokenGenerator, secure bool) *CSRFGuard {
	return &CSRFGuard{gen: gen, secure: secure}
}

// Token returns the form token for the requesting browser, issuing a visitor
// cookie first when the browser has none.
func (g *CSRFGuard) Token(c echo.Context) (string, error) {
	visitorID := g.visitorID(c)
	if visitorID == "" {
		visitorID = uuid.NewString()
		c.SetCookie(&http.Cookie{
			Name:     visitorCookieName,
			Value:    visitorID,
			Path:     "/",
			HttpOnly: true,
			Secure:   g.secure,
			SameSite: http.SameSiteLaxMode,
		})
		// Later reads in this request see the new id.
		c.Request().AddCookie(&http.Cookie{Name: visitorCookieName, Value: visitorID})
	}
	return g.gen.Generate(visitorID)
}

// Middleware rejects state-changing requests whose token does not match the visitor cookie.
func (g *CSRFGuard) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := c.Request().Header.Get(csrfHeader)
			if token == "" {
				token = c.FormValue(csrfFormField)
			}

			visitorID := g.visitorID(c)
			if !g.gen.Verify(visitorID, token) {
				slog.WarnContext(c.Request().Context(), "csrf token rejected",
					"path", c.Path(),
					"has_visitor", visitorID != "",
					"remote_addr", c.RealIP())
				return mapDomainError(domain.ErrCSRFInvalid)
			}
			return next(c)
		}
	}
}

func (g *CSRFGuard) visitorID(c echo.Context) string {
	cookie, err := c.Cookie(visitorCookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		return ""
	}
	return cookie.Value
}
