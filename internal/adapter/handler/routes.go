package handler

import (
	"vhybz-auth/internal/domain"
	"vhybz-auth/internal/usecase"
	appmiddleware "vhybz-auth/middleware"

	"github.com/labstack/echo/v4"
)

// Shell route configurations.
var (
	HomeRoute      = usecase.Route{AllowAnonymous: true}
	LoginRoute     = usecase.Route{AllowAnonymous: true}
	AssistantRoute = usecase.Route{}
	AdminRoute     = usecase.Route{Roles: domain.AnyOf(domain.RoleAdmin, domain.RoleSuperAdmin)}
)

// Routes bundles the handlers and per-group middleware of the shell.
type Routes struct {
	Pages    *PageHandler
	Actions  *ActionHandler
	Gate     *GateMiddleware
	CSRF     *CSRFGuard
	Internal *InternalHandler
	Health   *HealthHandler

	// Rate limit middleware per group; each may be nil.
	PageLimit     echo.MiddlewareFunc
	ActionLimit   echo.MiddlewareFunc
	InternalLimit echo.MiddlewareFunc

	// InternalSecret protects /internal when non-empty. Without it the
	// group only answers loopback peers.
	InternalSecret string
}

// Register mounts the shell's routes on e.
func Register(e *echo.Echo, r Routes) {
	pageMW := withOptional(r.PageLimit)
	e.GET("/", r.Pages.Home, append(pageMW, r.Gate.Protect(HomeRoute, ""))...)
	e.GET("/login", r.Pages.Login, append(pageMW, r.Gate.Protect(LoginRoute, ""))...)
	e.GET("/assistant", r.Pages.Assistant, append(pageMW, r.Gate.Protect(AssistantRoute, ""))...)
	e.GET("/admin", r.Pages.Admin, append(pageMW, r.Gate.Protect(AdminRoute, ""))...)

	actions := e.Group("/actions", withOptional(r.ActionLimit)...)
	actions.Use(r.CSRF.Middleware())
	actions.POST("/login", r.Actions.Login)
	actions.POST("/logout", r.Actions.Logout)
	actions.POST("/refetch", r.Actions.Refetch)
	actions.POST("/clear-error", r.Actions.ClearError)

	e.GET("/health", r.Health.Handle)

	internal := e.Group("/internal", withOptional(r.InternalLimit)...)
	if r.InternalSecret != "" {
		internal.Use(appmiddleware.InternalAuth(r.InternalSecret))
	} else {
		internal.Use(appmiddleware.LoopbackOnly())
	}
	internal.GET("/auth-state", r.Internal.HandleAuthState)
}

func withOptional(mw echo.MiddlewareFunc) []echo.MiddlewareFunc {
	if mw == nil {
		return nil
	}
	return []echo.MiddlewareFunc{mw}
}
