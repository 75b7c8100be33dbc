// Package navigator performs the full-page navigation that starts an external login.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"io"

	"vhybz-auth/internal/domain"

	"github.com/zitadel/oidc/v3/pkg/client/rp/cli"
)

// ErrNoRedirect is returned when a request-scoped navigator has no redirect sink.
var ErrNoRedirect = errors.New("no redirect target in context")

type redirectKey struct{}

// RedirectFunc receives the URL the host should navigate to.
type RedirectFunc func(url string)

// WithRedirect attaches a request-scoped redirect sink to ctx.
func WithRedirect(ctx context.Context, fn RedirectFunc) context.Context {
	return context.WithValue(ctx, redirectKey{}, fn)
}

// RedirectFromContext returns the redirect sink stored in ctx, if any.
func RedirectFromContext(ctx context.Context) (RedirectFunc, bool) {
	fn, ok := ctx.Value(redirectKey{}).(RedirectFunc)
	return fn, ok && fn != nil
}

// Browser opens the system browser. It is the navigator for terminal hosts.
type Browser struct {
	out  io.Writer
	open func(url string)
}

// NewBrowser creates a Browser navigator that prints the URL to out before opening it.
func NewBrowser(out io.Writer) *Browser {
	return &Browser{out: out, open: cli.OpenBrowser}
}

// Navigate opens url in the system browser. Opening is best effort.
func (b *Browser) Navigate(_ context.Context, url string) error {
	if b.out != nil {
		fmt.Fprintf(b.out, "Opening %s in your browser...\n", url)
	}
	b.open(url)
	return nil
}

// Redirect navigates by handing the URL to the redirect sink in the request context,
// falling back to another navigator when no sink is present.
type Redirect struct {
	fallback domain.Navigator
}

// NewRedirect creates a context-driven navigator. fallback may be nil.
func NewRedirect(fallback domain.Navigator) *Redirect {
	return &Redirect{fallback: fallback}
}

// Navigate implements domain.Navigator.
func (r *Redirect) Navigate(ctx context.Context, url string) error {
	if fn, ok := RedirectFromContext(ctx); ok {
		fn(url)
		return nil
	}
	if r.fallback != nil {
		return r.fallback.Navigate(ctx, url)
	}
	return ErrNoRedirect
}
