package handler

import (
	"net/http"

	"vhybz-auth/internal/domain"

	"github.com/labstack/echo/v4"
)

// Identity cache states reported by /health.
const (
	cacheEmpty    = "empty"
	cacheFetching = "fetching"
	cacheSettled  = "settled"
	cacheFailed   = "failed"
)

// HealthHandler reports liveness plus the identity cache's last known state.
type HealthHandler struct {
	backend string
	cache   domain.SessionCache
}

// NewHealthHandler creates a new health handler. cache may be nil.
func NewHealthHandler(backend string, cache domain.SessionCache) *HealthHandler {
	return &HealthHandler{backend: backend, cache: cache}
}

// Handle processes the /health endpoint. It never touches the identity
// backend, so a failing backend does not fail liveness.
func (h *HealthHandler) Handle(c echo.Context) error {
	body := map[string]string{
		"status":           "healthy",
		"identity_backend": h.backend,
	}
	if h.cache != nil {
		body["identity_cache"] = cacheStatus(h.cache.Entry())
	}
	return c.JSON(http.StatusOK, body)
}

func cacheStatus(e domain.CacheEntry) string {
	switch {
	case e.Fetching:
		return cacheFetching
	case e.Err != nil:
		return cacheFailed
	case e.Settled():
		return cacheSettled
	default:
		return cacheEmpty
	}
}
