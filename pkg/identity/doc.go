// Package identity manages users, their credentials and their role
// assignments.
//
// Role changes are restricted to tenant admins acting on users of their own
// tenant. Assigning a role a user already holds is a no-op. Role sets are
// served through a cache.RoleCache when one is configured, and invalidated on
// every change.
package identity
