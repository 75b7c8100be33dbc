package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"vhybz-auth/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNavigator struct {
	url string
	err error
}

func (n *recordingNavigator) Navigate(_ context.Context, url string) error {
	n.url = url
	return n.err
}

func newJar(t *testing.T, rawURL string) http.CookieJar {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	jar.SetCookies(u, []*http.Cookie{{Name: "connect.sid", Value: "s%3Aabc", Path: "/"}})
	return jar
}

func TestSessionAPIGateway_FetchIdentity(t *testing.T) {
	t.Run("200 returns decoded identity and sends cookies", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/api/user", r.URL.Path)
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Contains(t, r.Header.Get("Cookie"), "connect.sid=s%3Aabc")
			assert.NotEmpty(t, r.Header.Get("X-Request-Id"))

			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"_id":         "user-1",
				"googleId":    "g-1",
				"email":       "ada@example.com",
				"name":        "Ada",
				"role":        "admin",
				"permissions": []string{"users:read"},
				"createdAt":   "2024-03-01T10:00:00Z",
				"updatedAt":   "2024-03-01T10:00:00Z",
			})
		}))
		defer server.Close()

		gw := NewSessionAPIGateway(server.URL, newJar(t, server.URL), nil, 5*time.Second)
		identity, err := gw.FetchIdentity(context.Background())

		require.NoError(t, err)
		require.NotNil(t, identity)
		assert.Equal(t, "user-1", identity.ID)
		assert.Equal(t, "g-1", identity.ProviderID)
		assert.Equal(t, domain.RoleAdmin, identity.Role)
		assert.Equal(t, []string{"users:read"}, identity.Permissions)
	})

	t.Run("401 is a valid unauthenticated outcome", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer server.Close()

		gw := NewSessionAPIGateway(server.URL, nil, nil, 5*time.Second)
		identity, err := gw.FetchIdentity(context.Background())

		assert.NoError(t, err)
		assert.Nil(t, identity)
	})

	t.Run("500 returns network error with status text", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		gw := NewSessionAPIGateway(server.URL, nil, nil, 5*time.Second)
		identity, err := gw.FetchIdentity(context.Background())

		assert.Nil(t, identity)
		assert.True(t, errors.Is(err, domain.ErrNetwork))
		assert.False(t, domain.IsUnauthenticated(err))
		assert.Contains(t, err.Error(), "Internal Server Error")

		var statusErr *domain.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	})

	t.Run("unknown role is malformed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"_id":"user-1","role":"owner"}`))
		}))
		defer server.Close()

		gw := NewSessionAPIGateway(server.URL, nil, nil, 5*time.Second)
		identity, err := gw.FetchIdentity(context.Background())

		assert.Nil(t, identity)
		assert.True(t, errors.Is(err, domain.ErrMalformedIdentity))
		assert.False(t, errors.Is(err, domain.ErrNetwork))
	})

	t.Run("timeout becomes network error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		gw := NewSessionAPIGateway(server.URL, nil, nil, 50*time.Millisecond)
		identity, err := gw.FetchIdentity(context.Background())

		assert.Nil(t, identity)
		assert.True(t, errors.Is(err, domain.ErrNetwork))
	})
}

func TestSessionAPIGateway_Logout(t *testing.T) {
	t.Run("200 succeeds", func(t *testing.T) {
		var called bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			assert.Equal(t, "/auth/logout", r.URL.Path)
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Contains(t, r.Header.Get("Cookie"), "connect.sid=")
			w.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		gw := NewSessionAPIGateway(server.URL, newJar(t, server.URL), nil, 5*time.Second)
		err := gw.Logout(context.Background())

		assert.NoError(t, err)
		assert.True(t, called)
	})

	t.Run("500 fails with derived message", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		gw := NewSessionAPIGateway(server.URL, nil, nil, 5*time.Second)
		err := gw.Logout(context.Background())

		assert.True(t, errors.Is(err, domain.ErrNetwork))
		assert.Contains(t, err.Error(), "logout failed: Internal Server Error")
	})
}

func TestSessionAPIGateway_InitiateLogin(t *testing.T) {
	t.Run("navigates to the authorization endpoint", func(t *testing.T) {
		nav := &recordingNavigator{}
		gw := NewSessionAPIGateway("http://localhost:8000/", nil, nav, time.Second)

		err := gw.InitiateLogin(context.Background())

		assert.NoError(t, err)
		assert.Equal(t, "http://localhost:8000/auth/google", nav.url)
	})

	t.Run("navigator failure is reported", func(t *testing.T) {
		nav := &recordingNavigator{err: errors.New("no display")}
		gw := NewSessionAPIGateway("http://localhost:8000", nil, nav, time.Second)

		err := gw.InitiateLogin(context.Background())

		assert.True(t, errors.Is(err, domain.ErrNavigationFailed))
	})

	t.Run("missing navigator", func(t *testing.T) {
		gw := NewSessionAPIGateway("http://localhost:8000", nil, nil, time.Second)

		err := gw.InitiateLogin(context.Background())

		assert.True(t, errors.Is(err, domain.ErrNavigationFailed))
	})
}
