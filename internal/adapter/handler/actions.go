package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"vhybz-auth/internal/infrastructure/navigator"
	"vhybz-auth/internal/usecase"

	"github.com/labstack/echo/v4"
)

// ActionHandler serves the state-changing form posts of the shell.
type ActionHandler struct {
	facade    *usecase.AuthFacade
	loginPath string
}

// NewActionHandler creates an action handler.
func NewActionHandler(f *usecase.AuthFacade, loginPath string) *ActionHandler {
	if loginPath == "" {
		loginPath = usecase.DefaultLoginPath
	}
	return &ActionHandler{facade: f, loginPath: loginPath}
}

// Login sends the browser to the identity provider. The browser leaves the
// shell, so the post-login page load starts from a clean slate.
func (h *ActionHandler) Login(c echo.Context) error {
	var target string
	ctx := navigator.WithRedirect(c.Request().Context(), func(url string) {
		target = url
	})

	if err := h.facade.Login(ctx); err != nil {
		slog.ErrorContext(ctx, "login navigation failed", "error", err)
		return c.Redirect(http.StatusSeeOther, h.loginPath)
	}
	if target == "" {
		// The navigator opened the provider out of band.
		return c.Redirect(http.StatusSeeOther, h.loginPath)
	}

	h.facade.NavigationComplete()
	slog.InfoContext(ctx, "redirecting to identity provider", "target", target)
	return c.Redirect(http.StatusSeeOther, target)
}

// Logout ends the session. On failure the visitor stays where they were and
// sees the reason.
func (h *ActionHandler) Logout(c echo.Context) error {
	ctx := c.Request().Context()
	if err := h.facade.Logout(ctx); err != nil {
		return c.Redirect(http.StatusSeeOther, safeNext(c, "/assistant"))
	}
	slog.InfoContext(ctx, "user logged out")
	return c.Redirect(http.StatusSeeOther, h.loginPath)
}

// Refetch forces a fresh identity fetch and returns to the originating page.
func (h *ActionHandler) Refetch(c echo.Context) error {
	ctx := c.Request().Context()
	if _, err := h.facade.Refetch(ctx); err != nil {
		slog.WarnContext(ctx, "identity refetch failed", "error", err)
	}
	return c.Redirect(http.StatusSeeOther, safeNext(c, "/"))
}

// ClearError dismisses the visible auth error.
func (h *ActionHandler) ClearError(c echo.Context) error {
	h.facade.ClearError()
	return c.Redirect(http.StatusSeeOther, safeNext(c, "/"))
}

// safeNext returns the form's "next" path when it stays on this origin.
func safeNext(c echo.Context, fallback string) string {
	next := c.FormValue("next")
	if !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, `\`) {
		return fallback
	}
	return next
}
