package rbac

import "github.com/platinummonkey/folio/pkg/auth"

// Requirement is either a role name or a permission key.
type Requirement struct {
	Role       auth.RoleName
	Permission auth.Permission
}

// Role builds a role requirement.
func Role(name auth.RoleName) Requirement {
	return Requirement{Role: name}
}

// Perm builds a permission requirement.
func Perm(p auth.Permission) Requirement {
	return Requirement{Permission: p}
}

// Authorize reports whether u satisfies req.
func Authorize(u *auth.User, req Requirement) bool {
	if u == nil {
		return false
	}
	switch {
	case req.Role != "":
		return HasRole(u, req.Role)
	case req.Permission != "":
		return HasPermission(u, req.Permission)
	default:
		return false
	}
}

// HasRole reports whether u holds any of the named roles.
func HasRole(u *auth.User, names ...auth.RoleName) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		for _, name := range names {
			if r.Name == name {
				return true
			}
		}
	}
	return false
}

// HasPermission reports whether any of u's roles sets p to true.
func HasPermission(u *auth.User, p auth.Permission) bool {
	if u == nil {
		return false
	}
	for _, r := range u.Roles {
		if r.Permissions[p] {
			return true
		}
	}
	return false
}

// IsStaff reports whether u is an admin or editor. Staff see and manage
// everything in their tenant.
func IsStaff(u *auth.User) bool {
	return HasRole(u, auth.RoleAdmin, auth.RoleEditor)
}

// SameTenant reports whether u belongs to tenantID.
func SameTenant(u *auth.User, tenantID int64) bool {
	return u != nil && u.TenantID != nil && *u.TenantID == tenantID
}

// SameTenantUser reports whether actor and target share a tenant. Users
// without a tenant share it with nobody.
func SameTenantUser(actor, target *auth.User) bool {
	if target == nil || target.TenantID == nil {
		return false
	}
	return SameTenant(actor, *target.TenantID)
}
