// Package tenants manages tenant accounts and their resource limits.
//
// Tenants are created once at onboarding and soft-disabled through the
// active flag; they are never hard-deleted. Every user, journal and blog post
// carries the owning tenant's ID.
package tenants

import (
	"time"

	"github.com/platinummonkey/folio/pkg/errs"
)

// Default per-tenant limits.
const (
	DefaultMaxUsers     = 5
	DefaultMaxJournals  = 3
	DefaultMaxStorageGB = 10
)

// Tenant is an isolated organizational account.
type Tenant struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Subdomain    string    `json:"subdomain"`
	Active       bool      `json:"active"`
	MaxUsers     int       `json:"max_users"`
	MaxJournals  int       `json:"max_journals"`
	MaxStorageGB int       `json:"max_storage_gb"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// MaxStorageBytes returns the storage limit in bytes.
func (t *Tenant) MaxStorageBytes() int64 {
	return int64(t.MaxStorageGB) << 30
}

// Usage is a tenant's current resource consumption.
type Usage struct {
	Users        int   `json:"users"`
	Journals     int   `json:"journals"`
	StorageBytes int64 `json:"storage_bytes"`
}

// QuotaExceededError represents a quota exceeded error
type QuotaExceededError struct {
	Resource string
	Current  int64
	Limit    int64
}

func (e *QuotaExceededError) Error() string {
	return "quota exceeded for " + e.Resource
}

// Unwrap exposes the domain kind so errs.KindOf reports QuotaExceeded.
func (e *QuotaExceededError) Unwrap() error {
	return &errs.Error{Kind: errs.QuotaExceeded, Field: e.Resource}
}

// IsQuotaExceeded checks if an error is a quota exceeded error
func IsQuotaExceeded(err error) bool {
	return errs.KindOf(err) == errs.QuotaExceeded
}
