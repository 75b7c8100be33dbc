package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Role is a member of the closed role enumeration.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// ParseRole converts a raw string into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", fmt.Errorf("%w: unknown role %q", ErrMalformedIdentity, s)
	}
	return r, nil
}

// UnmarshalJSON rejects roles outside the enumeration.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedIdentity, err)
	}
	parsed, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// RequiredRole is a route's role constraint: any member satisfies it.
type RequiredRole []Role

// AnyOf builds a RequiredRole. A single role is a one-element set.
func AnyOf(roles ...Role) RequiredRole {
	return RequiredRole(roles)
}

// Contains reports whether role is a member of the set.
func (rr RequiredRole) Contains(role Role) bool {
	return slices.Contains(rr, role)
}

// Identity is the authenticated principal as returned by the identity endpoint.
// It is replaced wholesale on every successful fetch.
type Identity struct {
	ID          string    `json:"_id"`
	ProviderID  string    `json:"googleId"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Avatar      string    `json:"avatar,omitempty"`
	Role        Role      `json:"role"`
	Permissions []string  `json:"permissions,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// HasPermissions reports whether the identity carries a permission set at all.
func (i *Identity) HasPermissions() bool {
	return i != nil && i.Permissions != nil
}

// CacheEntry is the Session Cache's view of the identity.
type CacheEntry struct {
	Identity  *Identity
	FetchedAt time.Time
	Fetching  bool
	Err       error
}

// Settled reports whether a fetch has produced a definitive answer
// (identity, absent, or error) since the last invalidation.
func (e CacheEntry) Settled() bool {
	return !e.FetchedAt.IsZero() || e.Err != nil
}

// Pending reports whether no answer is available yet.
func (e CacheEntry) Pending() bool {
	return !e.Settled()
}

// UIState holds transient flags written by user-initiated actions.
// An empty Error means no error.
type UIState struct {
	Loading bool
	Error   string
}
