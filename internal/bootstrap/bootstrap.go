// Package bootstrap assembles the auth stack shared by the shell and vhybzctl.
package bootstrap

import (
	"fmt"
	"log/slog"
	"net/http"

	"vhybz-auth/config"
	"vhybz-auth/internal/adapter/gateway"
	"vhybz-auth/internal/domain"
	"vhybz-auth/internal/infrastructure/cache"
	"vhybz-auth/internal/infrastructure/cookiestore"
	"vhybz-auth/internal/infrastructure/uistate"
	"vhybz-auth/internal/usecase"
)

// Stack is the wired auth subsystem.
type Stack struct {
	Transport domain.SessionTransport
	Cache     *cache.SessionCache
	UI        *uistate.Store
	Facade    *usecase.AuthFacade
	Roles     *usecase.RoleEvaluator
	Gate      *usecase.AccessGate
}

// OpenJar opens the persisted cookie jar for the identity backend's origin and
// seeds it with cfg.SessionCookie when one is configured.
func OpenJar(cfg *config.Config) (*cookiestore.Jar, error) {
	jar, err := cookiestore.Open(cfg.CookieStorePath, cfg.IdentityURL(), cfg.CookieName)
	if err != nil {
		return nil, err
	}
	if cfg.SessionCookie != "" {
		if err := jar.SetSession(cfg.SessionCookie); err != nil {
			return nil, fmt.Errorf("failed to seed session cookie: %w", err)
		}
	}
	return jar, nil
}

// NewTransport picks the session transport for cfg.IdentityBackend.
func NewTransport(cfg *config.Config, jar http.CookieJar, nav domain.Navigator) (domain.SessionTransport, error) {
	switch cfg.IdentityBackend {
	case config.BackendSessionAPI:
		return gateway.NewSessionAPIGateway(cfg.APIBaseURL, jar, nav, cfg.FetchTimeout), nil
	case config.BackendKratos:
		return gateway.NewKratosGateway(cfg.KratosURL, jar, nav, cfg.FetchTimeout), nil
	default:
		return nil, fmt.Errorf("unknown identity backend %q", cfg.IdentityBackend)
	}
}

// New wires transport, cache, UI state, facade, evaluator and gate. Extra
// server state is dropped alongside the identity on logout.
func New(cfg *config.Config, transport domain.SessionTransport, l *slog.Logger, extra ...domain.ServerState) *Stack {
	if l == nil {
		l = slog.Default()
	}
	c := cache.NewSessionCache(transport, cache.Options{
		TTL:             cfg.CacheTTL,
		MaxAttempts:     cfg.FetchAttempts,
		InitialInterval: cfg.RetryInterval,
		Logger:          l,
	})
	ui := uistate.NewStore()
	facade := usecase.NewAuthFacade(transport, c, ui, l, extra...)
	roles := usecase.NewRoleEvaluator(c)

	return &Stack{
		Transport: transport,
		Cache:     c,
		UI:        ui,
		Facade:    facade,
		Roles:     roles,
		Gate:      usecase.NewAccessGate(facade, roles, cfg.LoginPath),
	}
}

// Close releases the facade's cache subscription.
func (s *Stack) Close() {
	s.Facade.Close()
}
