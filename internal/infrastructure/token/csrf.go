package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"time"

	"vhybz-auth/internal/domain"
)

// DefaultCSRFMaxAge bounds how long a rendered form stays submittable.
const DefaultCSRFMaxAge = 12 * time.Hour

// clockSkew tolerates tokens stamped slightly in the future by another replica.
const clockSkew = time.Minute

const stampSize = 8

// HMACCSRFGenerator issues CSRF tokens bound to a shell visitor id and an
// issue time: base64url(issuedAt || HMAC-SHA256(visitorID, issuedAt)).
// Implements domain.CSRFTokenGenerator.
type HMACCSRFGenerator struct {
	secret []byte
	maxAge time.Duration
	now    domain.Clock
}

// Option configures an HMACCSRFGenerator.
type Option func(*HMACCSRFGenerator)

// WithMaxAge sets how long issued tokens verify.
func WithMaxAge(d time.Duration) Option {
	return func(g *HMACCSRFGenerator) {
		if d > 0 {
			g.maxAge = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now domain.Clock) Option {
	return func(g *HMACCSRFGenerator) {
		if now != nil {
			g.now = now
		}
	}
}

// NewHMACCSRFGenerator creates a new CSRF token generator.
func NewHMACCSRFGenerator(secret string, opts ...Option) *HMACCSRFGenerator {
	g := &HMACCSRFGenerator{
		secret: []byte(secret),
		maxAge: DefaultCSRFMaxAge,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate issues a token for visitorID stamped with the current time.
func (g *HMACCSRFGenerator) Generate(visitorID string) (string, error) {
	if len(g.secret) == 0 {
		return "", domain.ErrCSRFSecretMissing
	}
	stamp := make([]byte, stampSize)
	binary.BigEndian.PutUint64(stamp, uint64(g.now().Unix()))
	return base64.RawURLEncoding.EncodeToString(append(stamp, g.sum(visitorID, stamp)...)), nil
}

// Verify reports whether token was issued for visitorID and is still within
// its max age.
func (g *HMACCSRFGenerator) Verify(visitorID, token string) bool {
	if len(g.secret) == 0 || visitorID == "" || token == "" {
		return false
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil || len(raw) != stampSize+sha256.Size {
		return false
	}
	stamp, mac := raw[:stampSize], raw[stampSize:]
	if !hmac.Equal(mac, g.sum(visitorID, stamp)) {
		return false
	}

	issued := time.Unix(int64(binary.BigEndian.Uint64(stamp)), 0)
	age := g.now().Sub(issued)
	return age <= g.maxAge && age >= -clockSkew
}

func (g *HMACCSRFGenerator) sum(visitorID string, stamp []byte) []byte {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write(stamp)
	mac.Write([]byte(visitorID))
	return mac.Sum(nil)
}
