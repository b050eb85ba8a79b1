// Package rbac is folio's authorization engine.
//
// Decisions are pure functions over a user's loaded role set:
//
//	rbac.Authorize(user, rbac.Role(auth.RoleEditor))
//	rbac.Authorize(user, rbac.Perm(auth.PermSubmitReviews))
//	rbac.SameTenant(user, journal.TenantID)
//
// A user with no roles is authorized for nothing. A permission key missing
// from every role map is a denial, never an error. A user without a tenant
// is authorized for no tenant-scoped entity.
//
// The Store persists roles and user-role assignments; Middleware guards HTTP
// routes using the authenticated user from the request context.
package rbac
