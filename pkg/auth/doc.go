// Package auth holds folio's identity types and credential handling.
//
// # Overview
//
// Users belong to at most one tenant and carry a set of roles. Each role maps
// permission keys to booleans; authorization decisions over these types live
// in package rbac.
//
// Passwords are never stored in plaintext. A PasswordHasher is injected into
// the identity service; BcryptHasher is the production implementation.
//
// API tokens are opaque bearer strings:
//
//	folio_<base64url(32 random bytes)>
//
// Only the SHA-256 hash of a token is persisted. The plaintext is returned
// once, from TokenStore.Create.
package auth
