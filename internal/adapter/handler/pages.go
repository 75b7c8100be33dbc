package handler

import (
	"log/slog"
	"net/http"

	"vhybz-auth/internal/domain"
	"vhybz-auth/internal/usecase"

	"github.com/labstack/echo/v4"
)

const authStateKey = "auth_state"

// pageData is the view model shared by every page template.
type pageData struct {
	Title       string
	Path        string
	LoginPath   string
	CSRFToken   string
	State       usecase.AuthState
	Role        domain.Role
	Permissions []string
	IsAdmin     bool
	Message     string
}

// PageHandler renders the shell's route tree.
type PageHandler struct {
	facade    *usecase.AuthFacade
	roles     *usecase.RoleEvaluator
	csrf      *CSRFGuard
	loginPath string
}

// NewPageHandler creates a page handler.
func NewPageHandler(f *usecase.AuthFacade, roles *usecase.RoleEvaluator, csrf *CSRFGuard, loginPath string) *PageHandler {
	if loginPath == "" {
		loginPath = usecase.DefaultLoginPath
	}
	return &PageHandler{facade: f, roles: roles, csrf: csrf, loginPath: loginPath}
}

// Home renders the landing page.
func (h *PageHandler) Home(c echo.Context) error {
	return h.render(c, http.StatusOK, "home", "Home", "")
}

// Login renders the login page, or sends an authenticated visitor on to the assistant.
func (h *PageHandler) Login(c echo.Context) error {
	if h.state(c).IsAuthenticated {
		return c.Redirect(http.StatusSeeOther, "/assistant")
	}
	return h.render(c, http.StatusOK, "login", "Log in", "")
}

// Assistant renders the authenticated workspace.
func (h *PageHandler) Assistant(c echo.Context) error {
	return h.render(c, http.StatusOK, "assistant", "Assistant", "")
}

// Admin renders the administrator page.
func (h *PageHandler) Admin(c echo.Context) error {
	return h.render(c, http.StatusOK, "admin", "Admin", "")
}

// state returns the auth state the gate stored for this request, or the facade's current view.
func (h *PageHandler) state(c echo.Context) usecase.AuthState {
	if s, ok := c.Get(authStateKey).(usecase.AuthState); ok {
		return s
	}
	return h.facade.State()
}

func (h *PageHandler) render(c echo.Context, code int, page, title, message string) error {
	ctx := c.Request().Context()

	token, err := h.csrf.Token(c)
	if err != nil {
		slog.ErrorContext(ctx, "failed to issue csrf token", "error", err)
		return mapDomainError(err)
	}

	data := pageData{
		Title:     title,
		Path:      c.Request().URL.Path,
		LoginPath: h.loginPath,
		CSRFToken: token,
		State:     h.state(c),
		Message:   message,
	}
	if data.State.User != nil {
		data.Permissions = data.State.User.Permissions
	}
	if h.roles != nil {
		data.Role = h.roles.UserRole()
		data.IsAdmin = h.roles.IsAdmin()
	}

	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return c.Render(code, page, data)
}
