package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"vhybz-auth/internal/domain"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

const (
	limiterSweepInterval = 3 * time.Minute
	limiterIdleTimeout   = 5 * time.Minute
)

// KeyFunc picks the bucket a request is counted against.
type KeyFunc func(c echo.Context) string

// RealIPKey buckets requests by client address.
func RealIPKey(c echo.Context) string {
	return c.RealIP()
}

type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a token bucket per key to the shell's action endpoints.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*keyedLimiter
	rate     rate.Limit
	burst    int
	key      KeyFunc
	now      func() time.Time
}

// NewRateLimiter creates a limiter allowing r events per second with the given
// burst. Idle buckets are swept until ctx is done. A nil key uses RealIPKey.
func NewRateLimiter(ctx context.Context, r rate.Limit, burst int, key KeyFunc) *RateLimiter {
	if key == nil {
		key = RealIPKey
	}
	rl := &RateLimiter{
		limiters: make(map[string]*keyedLimiter),
		rate:     r,
		burst:    burst,
		key:      key,
		now:      time.Now,
	}
	go rl.sweepLoop(ctx)
	return rl
}

func (rl *RateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if l, ok := rl.limiters[key]; ok {
		l.lastSeen = now
		return l.limiter
	}

	limiter := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = &keyedLimiter{limiter: limiter, lastSeen: now}
	return limiter
}

func (rl *RateLimiter) sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, l := range rl.limiters {
		if now.Sub(l.lastSeen) > limiterIdleTimeout {
			delete(rl.limiters, key)
		}
	}
}

func (rl *RateLimiter) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(limiterSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.sweep()
		}
	}
}

// Middleware returns an Echo middleware that enforces the limit.
func (rl *RateLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !rl.limiterFor(rl.key(c)).Allow() {
				retryAfter := max(int(1.0/float64(rl.rate)), 1)
				c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfter))
				return echo.NewHTTPError(http.StatusTooManyRequests, domain.ErrRateLimited.Error())
			}
			return next(c)
		}
	}
}
