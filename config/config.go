package config

import (
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Identity backends understood by IDENTITY_BACKEND.
const (
	BackendSessionAPI = "api"
	BackendKratos     = "kratos"
)

// Config holds the application configuration
type Config struct {
	APIBaseURL      string        // Platform API origin serving /api/user and /auth/*
	IdentityBackend string        // "api" or "kratos"
	KratosURL       string        // Kratos Frontend API (port 4433)
	ListenAddr      string        // Shell listen host; loopback unless overridden
	Port            string        // Shell listen port
	CacheTTL        time.Duration // Identity freshness window
	FetchTimeout    time.Duration // Per-request timeout on the session transport
	FetchAttempts   uint          // Identity fetch attempts including the first
	RetryInterval   time.Duration // Initial backoff between identity fetch attempts
	LoginPath       string        // Redirect target for unauthenticated visitors
	CookieName      string        // Session cookie name
	SessionCookie   string        // Pre-seeded session cookie value (CLI)
	CookieStorePath string        // File backing the session cookie jar
	SecureCookies   bool          // Mark shell cookies Secure
	CSRFSecret      string        // Secret for the shell's form tokens
	InternalSecret  string        // Shared secret for /internal endpoints
}

// Load reads configuration from environment variables with sensible defaults
func Load() (*Config, error) {
	config := &Config{
		APIBaseURL:      getEnv("API_BASE_URL", "http://localhost:8000"),
		IdentityBackend: getEnv("IDENTITY_BACKEND", BackendSessionAPI),
		KratosURL:       getEnv("KRATOS_URL", "http://kratos:4433"),
		ListenAddr:      getEnv("LISTEN_ADDR", "127.0.0.1"),
		Port:            getEnv("PORT", "3000"),
		CacheTTL:        5 * time.Minute,
		FetchTimeout:    10 * time.Second,
		FetchAttempts:   3,
		RetryInterval:   time.Second,
		LoginPath:       getEnv("LOGIN_PATH", "/login"),
		CookieName:      getEnv("SESSION_COOKIE_NAME", "connect.sid"),
		SessionCookie:   getEnv("SESSION_COOKIE", ""),
		CookieStorePath: getEnv("COOKIE_STORE_PATH", defaultCookieStorePath()),
		SecureCookies:   getEnv("COOKIE_SECURE", "false") == "true",
		CSRFSecret:      getEnv("CSRF_SECRET", ""),
		InternalSecret:  getEnv("INTERNAL_AUTH_SECRET", ""),
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"CACHE_TTL", &config.CacheTTL},
		{"FETCH_TIMEOUT", &config.FetchTimeout},
		{"RETRY_INITIAL_INTERVAL", &config.RetryInterval},
	}
	for _, d := range durations {
		raw := os.Getenv(d.key)
		if raw == "" {
			continue
		}
		duration, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s format: %w", d.key, err)
		}
		*d.dst = duration
	}

	if raw := os.Getenv("FETCH_MAX_ATTEMPTS"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid FETCH_MAX_ATTEMPTS format: %w", err)
		}
		config.FetchAttempts = uint(n)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.APIBaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL must be an absolute URL, got %q", c.APIBaseURL)
	}

	switch c.IdentityBackend {
	case BackendSessionAPI:
	case BackendKratos:
		if c.KratosURL == "" {
			return fmt.Errorf("KRATOS_URL cannot be empty when IDENTITY_BACKEND=kratos")
		}
	default:
		return fmt.Errorf("IDENTITY_BACKEND must be %q or %q, got %q", BackendSessionAPI, BackendKratos, c.IdentityBackend)
	}

	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("LISTEN_ADDR cannot be empty; use 0.0.0.0 to listen on every interface")
	}
	if _, err := netip.ParseAddr(c.ListenAddr); err != nil && !validHostname(c.ListenAddr) {
		return fmt.Errorf("LISTEN_ADDR must be an IP address or hostname, got %q", c.ListenAddr)
	}

	if c.CacheTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}

	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FETCH_TIMEOUT must be positive")
	}

	if c.FetchAttempts == 0 {
		return fmt.Errorf("FETCH_MAX_ATTEMPTS must be at least 1")
	}

	if !strings.HasPrefix(c.LoginPath, "/") {
		return fmt.Errorf("LOGIN_PATH must start with /")
	}

	return nil
}

// Address returns the shell's host:port listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.ListenAddr, c.Port)
}

// IdentityURL returns the base URL of the configured identity backend.
func (c *Config) IdentityURL() string {
	if c.IdentityBackend == BackendKratos {
		return c.KratosURL
	}
	return c.APIBaseURL
}

func validHostname(host string) bool {
	if len(host) > 253 || strings.ContainsAny(host, ":/ ") {
		return false
	}
	for _, label := range strings.Split(host, ".") {
		if label == "" || len(label) > 63 || label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
	}
	return true
}

func defaultCookieStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".vhybz", "cookies.json")
}

// getEnv retrieves an environment variable or returns a fallback value
func getEnv(key, fallback string) string {
	// Check for _FILE suffix
	if fileValue := os.Getenv(key + "_FILE"); fileValue != "" {
		content, err := os.ReadFile(fileValue)
		if err == nil {
			return strings.TrimSpace(string(content))
		}
	}

	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
