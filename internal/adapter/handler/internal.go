package handler

import (
	"log/slog"
	"net/http"
	"time"

	"vhybz-auth/internal/domain"
	"vhybz-auth/internal/usecase"

	"github.com/labstack/echo/v4"
)

// InternalHandler exposes the shell's auth state to trusted local tooling.
type InternalHandler struct {
	facade *usecase.AuthFacade
	cache  domain.SessionCache
}

// NewInternalHandler creates a new internal handler.
func NewInternalHandler(f *usecase.AuthFacade, c domain.SessionCache) *InternalHandler {
	return &InternalHandler{facade: f, cache: c}
}

// cacheInfo describes the session cache entry without its identity.
type cacheInfo struct {
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
	Fetching  bool       `json:"fetching"`
	Error     string     `json:"error,omitempty"`
}

// authStateResponse represents the response for the auth state endpoint.
type authStateResponse struct {
	State usecase.AuthState `json:"state"`
	Cache cacheInfo         `json:"cache"`
}

// HandleAuthState returns the current merged auth state. It never triggers a fetch.
func (h *InternalHandler) HandleAuthState(c echo.Context) error {
	ctx := c.Request().Context()

	entry := h.cache.Entry()
	info := cacheInfo{Fetching: entry.Fetching}
	if !entry.FetchedAt.IsZero() {
		fetchedAt := entry.FetchedAt
		info.FetchedAt = &fetchedAt
	}
	if entry.Err != nil {
		info.Error = entry.Err.Error()
	}

	state := h.facade.State()
	slog.DebugContext(ctx, "auth state requested",
		"authenticated", state.IsAuthenticated,
		"remote_addr", c.RealIP())
	return c.JSON(http.StatusOK, authStateResponse{State: state, Cache: info})
}
