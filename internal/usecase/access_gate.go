package usecase

import (
	"context"
	"fmt"
	"strings"

	"vhybz-auth/internal/domain"
)

// DefaultLoginPath is where unauthenticated visitors are sent.
const DefaultLoginPath = "/login"

// Decision is the Access Gate verdict for one render.
type Decision string

const (
	DecisionChecking        Decision = "CHECKING"
	DecisionUnauthenticated Decision = "UNAUTHENTICATED"
	DecisionForbidden       Decision = "FORBIDDEN"
	DecisionAuthorized      Decision = "AUTHORIZED"
)

// Forbidden view messages.
const (
	MessageRoleDenied       = "You don't have permission to access this page."
	MessagePermissionDenied = "You don't have the required permissions to access this page."
)

// Route is a protected route's gate configuration.
// The zero value requires an authenticated user and nothing more.
type Route struct {
	Roles          domain.RequiredRole
	Permissions    []string
	HasFallback    bool
	AllowAnonymous bool
}

func (r Route) String() string {
	var parts []string
	if len(r.Roles) > 0 {
		roles := make([]string, len(r.Roles))
		for i, role := range r.Roles {
			roles[i] = string(role)
		}
		parts = append(parts, "roles="+strings.Join(roles, "|"))
	}
	if len(r.Permissions) > 0 {
		parts = append(parts, "permissions="+strings.Join(r.Permissions, ","))
	}
	if r.AllowAnonymous {
		parts = append(parts, "anonymous")
	}
	if len(parts) == 0 {
		return "auth"
	}
	return strings.Join(parts, " ")
}

// Outcome is a Decision plus what the presentation layer needs to render it.
type Outcome struct {
	Decision          Decision `json:"decision"`
	RedirectTo        string   `json:"redirectTo,omitempty"`
	UseFallback       bool     `json:"useFallback,omitempty"`
	Message           string   `json:"message,omitempty"`
	MissingPermission string   `json:"missingPermission,omitempty"`
}

// Predicates is the role and permission surface the gate consults.
type Predicates interface {
	HasRole(required domain.RequiredRole) bool
	HasPermission(p string) bool
}

// Decide evaluates the gate in fixed order: loading, authentication,
// role, permissions. It performs no I/O.
func Decide(state AuthState, p Predicates, route Route, loginPath string) Outcome {
	if state.IsLoading {
		return Outcome{Decision: DecisionChecking}
	}

	if !route.AllowAnonymous && !state.IsAuthenticated {
		if route.HasFallback {
			return Outcome{Decision: DecisionUnauthenticated, UseFallback: true}
		}
		if loginPath == "" {
			loginPath = DefaultLoginPath
		}
		return Outcome{Decision: DecisionUnauthenticated, RedirectTo: loginPath}
	}

	if len(route.Roles) > 0 && !p.HasRole(route.Roles) {
		return Outcome{Decision: DecisionForbidden, Message: MessageRoleDenied}
	}

	for _, perm := range route.Permissions {
		if !p.HasPermission(perm) {
			return Outcome{
				Decision:          DecisionForbidden,
				Message:           MessagePermissionDenied,
				MissingPermission: perm,
			}
		}
	}

	return Outcome{Decision: DecisionAuthorized}
}

// AccessGate applies Decide to the live facade state.
type AccessGate struct {
	facade    *AuthFacade
	roles     Predicates
	loginPath string
}

// NewAccessGate creates a new AccessGate. An empty loginPath uses DefaultLoginPath.
func NewAccessGate(f *AuthFacade, roles Predicates, loginPath string) *AccessGate {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	return &AccessGate{facade: f, roles: roles, loginPath: loginPath}
}

// Evaluate decides from the current state without triggering a fetch.
func (g *AccessGate) Evaluate(route Route) Outcome {
	return Decide(g.facade.State(), g.roles, route, g.loginPath)
}

// Check refreshes the session if needed, then decides.
func (g *AccessGate) Check(ctx context.Context, route Route) Outcome {
	_, out := g.Resolve(ctx, route)
	return out
}

// Resolve is Check that also returns the state the decision was made from.
func (g *AccessGate) Resolve(ctx context.Context, route Route) (AuthState, Outcome) {
	state := g.facade.Ensure(ctx)
	return state, Decide(state, g.roles, route, g.loginPath)
}

// LoginPath returns the configured login entry point.
func (g *AccessGate) LoginPath() string {
	return g.loginPath
}

func (o Outcome) String() string {
	switch {
	case o.RedirectTo != "":
		return fmt.Sprintf("%s -> %s", o.Decision, o.RedirectTo)
	case o.MissingPermission != "":
		return fmt.Sprintf("%s (missing %s)", o.Decision, o.MissingPermission)
	default:
		return string(o.Decision)
	}
}
