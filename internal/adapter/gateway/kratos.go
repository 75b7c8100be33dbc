package gateway

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"vhybz-auth/internal/domain"

	kratos "github.com/ory/kratos-client-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const kratosLoginPath = "/self-service/login/browser"

// KratosGateway implements domain.SessionTransport against the Ory Kratos frontend API.
type KratosGateway struct {
	client    *kratos.APIClient
	baseURL   string
	navigator domain.Navigator
}

// NewKratosGateway creates a Kratos gateway whose HTTP client carries the session jar.
func NewKratosGateway(baseURL string, jar http.CookieJar, nav domain.Navigator, timeout time.Duration) *KratosGateway {
	configuration := kratos.NewConfiguration()
	configuration.Servers = []kratos.ServerConfiguration{
		{URL: baseURL},
	}

	transport := &http.Transport{
		MaxIdleConns:        20,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	configuration.HTTPClient = &http.Client{
		Timeout:   timeout,
		Transport: transport,
		Jar:       jar,
	}

	return &KratosGateway{
		client:    kratos.NewAPIClient(configuration),
		baseURL:   strings.TrimRight(baseURL, "/"),
		navigator: nav,
	}
}

// FetchIdentity resolves the session via /sessions/whoami.
// 401 and inactive sessions both mean "not logged in".
func (g *KratosGateway) FetchIdentity(ctx context.Context) (*domain.Identity, error) {
	ctx, span := tracer.Start(ctx, "kratos.to_session", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	session, resp, err := g.client.FrontendAPI.ToSession(ctx).Execute()
	if err != nil {
		if resp != nil {
			span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
			if resp.StatusCode == http.StatusUnauthorized {
				return nil, nil
			}
			statusErr := domain.NewStatusError(resp.StatusCode, resp.Status)
			recordSpanError(span, statusErr)
			return nil, fmt.Errorf("%w: kratos returned status %d: %w", domain.ErrNetwork, resp.StatusCode, statusErr)
		}
		recordSpanError(span, err)
		return nil, fmt.Errorf("%w: %w", domain.ErrNetwork, err)
	}

	if session.Active != nil && !*session.Active {
		return nil, nil
	}

	if session.Identity == nil {
		return nil, fmt.Errorf("%w: missing identity in session", domain.ErrMalformedIdentity)
	}

	return identityFromKratos(session.Identity)
}

// Logout creates a browser logout flow and submits its token.
// A 401 while creating the flow means the session is already gone.
func (g *KratosGateway) Logout(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "kratos.logout", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()

	flow, resp, err := g.client.FrontendAPI.CreateBrowserLogoutFlow(ctx).Execute()
	if err != nil {
		if resp != nil {
			if resp.StatusCode == http.StatusUnauthorized {
				return nil
			}
			statusErr := domain.NewStatusError(resp.StatusCode, resp.Status)
			recordSpanError(span, statusErr)
			return fmt.Errorf("%w: logout failed: %w", domain.ErrNetwork, statusErr)
		}
		recordSpanError(span, err)
		return fmt.Errorf("%w: logout failed: %w", domain.ErrNetwork, err)
	}

	resp, err = g.client.FrontendAPI.UpdateLogoutFlow(ctx).Token(flow.LogoutToken).Execute()
	if err != nil {
		if resp != nil {
			statusErr := domain.NewStatusError(resp.StatusCode, resp.Status)
			recordSpanError(span, statusErr)
			return fmt.Errorf("%w: logout failed: %w", domain.ErrNetwork, statusErr)
		}
		recordSpanError(span, err)
		return fmt.Errorf("%w: logout failed: %w", domain.ErrNetwork, err)
	}
	return nil
}

// LoginURL is the Kratos browser login flow entry point.
func (g *KratosGateway) LoginURL() string {
	return g.baseURL + kratosLoginPath
}

// InitiateLogin hands the browser login flow URL to the host navigator.
func (g *KratosGateway) InitiateLogin(ctx context.Context) error {
	if g.navigator == nil {
		return fmt.Errorf("%w: no navigator configured", domain.ErrNavigationFailed)
	}
	if err := g.navigator.Navigate(ctx, g.LoginURL()); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNavigationFailed, err)
	}
	return nil
}

// identityFromKratos maps traits and public metadata onto domain.Identity.
// Identities without a role in metadata_public are plain users.
func identityFromKratos(ki *kratos.Identity) (*domain.Identity, error) {
	identity := &domain.Identity{
		ID:   ki.Id,
		Role: domain.RoleUser,
	}

	if traits, ok := ki.Traits.(map[string]interface{}); ok {
		identity.Email = stringValue(traits["email"])
		identity.Name = stringValue(traits["name"])
		identity.Avatar = stringValue(traits["picture"])
		identity.ProviderID = stringValue(traits["google_id"])
	}

	if meta, ok := ki.MetadataPublic.(map[string]interface{}); ok {
		if raw := stringValue(meta["role"]); raw != "" {
			role, err := domain.ParseRole(raw)
			if err != nil {
				return nil, err
			}
			identity.Role = role
		}
		if perms, ok := meta["permissions"].([]interface{}); ok {
			identity.Permissions = make([]string, 0, len(perms))
			for _, p := range perms {
				if s := stringValue(p); s != "" {
					identity.Permissions = append(identity.Permissions, s)
				}
			}
		}
	}

	if ki.CreatedAt != nil {
		identity.CreatedAt = *ki.CreatedAt
	}
	if ki.UpdatedAt != nil {
		identity.UpdatedAt = *ki.UpdatedAt
	}

	return identity, nil
}

func stringValue(v interface{}) string {
	s, _ := v.(string)
	return s
}
