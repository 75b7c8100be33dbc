package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"vhybz-auth/internal/domain"
	appotel "vhybz-auth/utils/otel"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTTL             = 5 * time.Minute
	DefaultMaxAttempts     = 3
	DefaultInitialInterval = time.Second
)

var tracer = otel.Tracer("vhybz-auth/cache")

// Options tunes a SessionCache. Zero values fall back to the defaults above.
type Options struct {
	TTL             time.Duration
	MaxAttempts     uint
	InitialInterval time.Duration
	Clock           domain.Clock
	Logger          *slog.Logger
}

// SessionCache provides a single shared, deduplicated identity entry with a
// freshness window. Implements domain.SessionCache and domain.ServerState.
type SessionCache struct {
	transport domain.SessionTransport
	ttl       time.Duration
	attempts  uint
	interval  time.Duration
	now       domain.Clock
	logger    *slog.Logger

	group singleflight.Group

	mu         sync.Mutex
	entry      domain.CacheEntry
	generation uint64
	subs       map[int]func(domain.CacheEntry)
	nextSub    int
}

// NewSessionCache creates a new session cache in front of transport.
func NewSessionCache(transport domain.SessionTransport, opts Options) *SessionCache {
	c := &SessionCache{
		transport: transport,
		ttl:       opts.TTL,
		attempts:  opts.MaxAttempts,
		interval:  opts.InitialInterval,
		now:       opts.Clock,
		logger:    opts.Logger,
		subs:      make(map[int]func(domain.CacheEntry)),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultTTL
	}
	if c.attempts == 0 {
		c.attempts = DefaultMaxAttempts
	}
	if c.interval <= 0 {
		c.interval = DefaultInitialInterval
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Entry returns a snapshot of the current cache entry.
func (c *SessionCache) Entry() domain.CacheEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry
}

// Identity returns the last resolved identity, or nil.
func (c *SessionCache) Identity() *domain.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entry.Identity
}

// EnsureFresh returns the cached identity when it is within the freshness
// window, and otherwise joins or starts the single outstanding fetch.
// Cancelling ctx abandons the wait but never the shared fetch.
//
// The caller that starts a fetch publishes both the in-flight entry and the
// settled one. Subscribers run outside the fetch, after it has been
// forgotten, so a subscriber may call EnsureFresh again.
func (c *SessionCache) EnsureFresh(ctx context.Context) (*domain.Identity, error) {
	for {
		c.mu.Lock()
		if c.freshLocked() {
			identity := c.entry.Identity
			c.mu.Unlock()
			return identity, nil
		}
		gen := c.generation
		started := !c.entry.Fetching
		c.entry.Fetching = true
		snapshot := c.entry
		// Registered under mu: Fetching is true exactly while the flight key is live.
		fetchCtx := context.WithoutCancel(ctx)
		ch := c.group.DoChan(flightKey(gen), func() (any, error) {
			return c.fetch(fetchCtx, gen)
		})
		c.mu.Unlock()

		if started {
			c.notify(snapshot)
		}

		var res singleflight.Result
		select {
		case <-ctx.Done():
			if started {
				go func() { c.publish(<-ch) }()
			}
			return c.Identity(), ctx.Err()
		case res = <-ch:
		}
		if started {
			c.publish(res)
		}

		if c.currentGeneration() != gen {
			// Invalidated while in flight; the result belongs to a dropped entry.
			continue
		}
		out, _ := res.Val.(*outcome)
		if out == nil {
			return nil, res.Err
		}
		return out.identity, res.Err
	}
}

// Invalidate clears the entry and its freshness timestamp. Fetches that were
// in flight settle into the discarded generation and are ignored.
func (c *SessionCache) Invalidate() {
	c.mu.Lock()
	c.generation++
	c.entry = domain.CacheEntry{}
	snapshot := c.entry
	c.mu.Unlock()

	c.logger.Debug("session cache invalidated")
	c.notify(snapshot)
}

// Subscribe registers fn to receive every entry change. The returned function
// removes the subscription.
func (c *SessionCache) Subscribe(fn func(domain.CacheEntry)) func() {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// outcome is what a flight hands to its waiters.
type outcome struct {
	gen      uint64
	identity *domain.Identity
	entry    domain.CacheEntry
	written  bool
}

func (c *SessionCache) fetch(ctx context.Context, gen uint64) (*outcome, error) {
	ctx, span := tracer.Start(ctx, "session_cache.fetch")
	defer span.End()

	start := c.now()
	var attempts int
	identity, err := backoff.Retry(ctx, func() (*domain.Identity, error) {
		attempts++
		identity, err := c.transport.FetchIdentity(ctx)
		switch {
		case err == nil:
			return identity, nil
		case domain.IsUnauthenticated(err):
			return nil, nil
		case errors.Is(err, domain.ErrNetwork):
			c.logger.WarnContext(ctx, "identity fetch failed",
				"attempt", attempts,
				"error", err,
			)
			return nil, err
		default:
			return nil, backoff.Permanent(err)
		}
	}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(c.attempts))

	span.SetAttributes(
		attribute.Int("vhybz.fetch.attempts", attempts),
		attribute.Bool("vhybz.session.authenticated", identity != nil),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	entry, written := c.settle(gen, identity, err)
	appotel.RecordIdentityFetch(ctx, fetchResult(identity, err))

	c.logger.DebugContext(ctx, "identity fetch settled",
		"attempts", attempts,
		"authenticated", identity != nil,
		"duration_ms", c.now().Sub(start).Milliseconds(),
		"error", err,
	)
	out := &outcome{gen: gen, identity: identity, entry: entry, written: written}
	if err != nil {
		out.identity = nil
		return out, fmt.Errorf("fetch identity: %w", err)
	}
	return out, nil
}

// settle writes a fetch result into the entry unless the generation moved on,
// and retires the flight so later callers start a new one. A failed fetch
// keeps the previously resolved identity alongside the error.
func (c *SessionCache) settle(gen uint64, identity *domain.Identity, err error) (domain.CacheEntry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.group.Forget(flightKey(gen))
	if gen != c.generation {
		return domain.CacheEntry{}, false
	}
	if err != nil {
		c.entry = domain.CacheEntry{
			Identity: c.entry.Identity,
			Err:      err,
		}
	} else {
		c.entry = domain.CacheEntry{
			Identity:  identity,
			FetchedAt: c.now(),
		}
	}
	return c.entry, true
}

// publish notifies subscribers of the entry a flight settled into.
func (c *SessionCache) publish(res singleflight.Result) {
	out, ok := res.Val.(*outcome)
	if !ok || !out.written || out.gen != c.currentGeneration() {
		return
	}
	c.notify(out.entry)
}

func (c *SessionCache) newBackOff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.interval
	bo.MaxInterval = 30 * time.Second
	bo.Multiplier = 2
	return bo
}

func (c *SessionCache) freshLocked() bool {
	if c.entry.Fetching || c.entry.Err != nil || c.entry.FetchedAt.IsZero() {
		return false
	}
	return c.now().Sub(c.entry.FetchedAt) < c.ttl
}

func (c *SessionCache) currentGeneration() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

func (c *SessionCache) notify(entry domain.CacheEntry) {
	c.mu.Lock()
	fns := make([]func(domain.CacheEntry), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(entry)
	}
}

func fetchResult(identity *domain.Identity, err error) string {
	switch {
	case err != nil:
		return "error"
	case identity == nil:
		return "anonymous"
	default:
		return "authenticated"
	}
}

func flightKey(gen uint64) string {
	return fmt.Sprintf("identity:%d", gen)
}
