package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func serveWithHeaders(t *testing.T, mw echo.MiddlewareFunc) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	e.Use(mw)
	e.GET("/assistant", func(c echo.Context) error {
		return c.HTML(http.StatusOK, "<p>ok</p>")
	})

	req := httptest.NewRequest(http.MethodGet, "/assistant", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestSecurityHeaders_SetsAllHeaders(t *testing.T) {
	rec := serveWithHeaders(t, SecurityHeaders())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "max-age=63072000; includeSubDomains; preload", rec.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t,
		"default-src 'self'; img-src 'self' https: data:; style-src 'self' 'unsafe-inline'; form-action 'self'; frame-ancestors 'none'; base-uri 'none'",
		rec.Header().Get("Content-Security-Policy"))
	assert.Equal(t, "strict-origin-when-cross-origin", rec.Header().Get("Referrer-Policy"))
	assert.Equal(t, "no-store, no-cache, must-revalidate, private", rec.Header().Get("Cache-Control"))
}

func TestSecurityHeaders_FormTargets(t *testing.T) {
	rec := serveWithHeaders(t, SecurityHeaders("http://localhost:8000"))

	assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "form-action 'self' http://localhost:8000;")
}
