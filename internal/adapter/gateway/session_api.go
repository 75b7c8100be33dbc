package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"vhybz-auth/internal/domain"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	identityPath = "/api/user"
	logoutPath   = "/auth/logout"
	loginPath    = "/auth/google"

	requestIDHeader = "X-Request-Id"
)

var tracer = otel.Tracer("vhybz-auth/gateway")

// SessionAPIGateway implements domain.SessionTransport against the VhybZ REST API.
// Session cookies live in the client's jar, which plays the role of the browser.
type SessionAPIGateway struct {
	baseURL    string
	httpClient *http.Client
	navigator  domain.Navigator
}

// NewSessionAPIGateway creates a gateway with a bounded-timeout HTTP client.
// jar may be nil when the caller manages cookies another way.
func NewSessionAPIGateway(baseURL string, jar http.CookieJar, nav domain.Navigator, timeout time.Duration) *SessionAPIGateway {
	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	return &SessionAPIGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
			Jar:       jar,
		},
		navigator: nav,
	}
}

// FetchIdentity retrieves the current user. A 401 answer yields nil, nil.
func (g *SessionAPIGateway) FetchIdentity(ctx context.Context) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "session_api.fetch_identity", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	resp, err := g.do(ctx, http.MethodGet, identityPath)
	if err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("%w: failed to fetch user: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode == http.StatusUnauthorized {
		return nil, nil
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := domain.NewStatusError(resp.StatusCode, resp.Status)
		recordSpanError(span, statusErr)
		return nil, fmt.Errorf("%w: failed to fetch user: %w", domain.ErrNetwork, statusErr)
	}

	var identity domain.Identity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		recordSpanError(span, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrMalformedIdentity, err)
	}
	if identity.ID == "" {
		return nil, fmt.Errorf("%w: missing _id", domain.ErrMalformedIdentity)
	}

	span.SetAttributes(attribute.String("enduser.role", string(identity.Role)))
	return &identity, nil
}

// Logout asks the server to invalidate the session cookie.
func (g *SessionAPIGateway) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "session_api.logout", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	resp, err := g.do(ctx, http.MethodPost, logoutPath)
	if err != nil {
		recordSpanError(span, err)
		return fmt.Errorf("%w: logout failed: %w", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		statusErr := domain.NewStatusError(resp.StatusCode, resp.Status)
		recordSpanError(span, statusErr)
		return fmt.Errorf("%w: logout failed: %w", domain.ErrNetwork, statusErr)
	}
	return nil
}

// LoginURL is the external authorization entry point.
func (g *SessionAPIGateway) LoginURL() string {
	return g.baseURL + loginPath
}

// InitiateLogin hands the authorization URL to the host navigator.
func (g *SessionAPIGateway) InitiateLogin(ctx context.Context) error {
	if g.navigator == nil {
		return fmt.Errorf("%w: no navigator configured", domain.ErrNavigationFailed)
	}
	if err := g.navigator.Navigate(ctx, g.LoginURL()); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNavigationFailed, err)
	}
	return nil
}

func (g *SessionAPIGateway) do(ctx context.Context, method, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	return g.httpClient.Do(req)
}

func recordSpanError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
