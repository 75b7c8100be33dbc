package usecase

import (
	"slices"

	"vhybz-auth/internal/domain"
)

// RoleEvaluator answers role and permission predicates over the cached identity.
// Every predicate is false when no identity is cached.
type RoleEvaluator struct {
	identities domain.IdentityReader
}

// NewRoleEvaluator creates a new RoleEvaluator.
func NewRoleEvaluator(r domain.IdentityReader) *RoleEvaluator {
	return &RoleEvaluator{identities: r}
}

// HasRole reports whether the identity's role is a member of required.
func (e *RoleEvaluator) HasRole(required domain.RequiredRole) bool {
	identity := e.identities.Identity()
	return identity != nil && required.Contains(identity.Role)
}

// CanAccess is HasRole under the name route guards use.
func (e *RoleEvaluator) CanAccess(required domain.RequiredRole) bool {
	return e.HasRole(required)
}

// HasPermission reports whether the identity carries permission p.
func (e *RoleEvaluator) HasPermission(p string) bool {
	identity := e.identities.Identity()
	return identity.HasPermissions() && slices.Contains(identity.Permissions, p)
}

func (e *RoleEvaluator) IsAdmin() bool {
	return e.HasRole(domain.AnyOf(domain.RoleAdmin, domain.RoleSuperAdmin))
}

func (e *RoleEvaluator) IsSuperAdmin() bool {
	return e.HasRole(domain.AnyOf(domain.RoleSuperAdmin))
}

// UserRole returns the cached role, or "" when nobody is signed in.
func (e *RoleEvaluator) UserRole() domain.Role {
	if identity := e.identities.Identity(); identity != nil {
		return identity.Role
	}
	return ""
}
