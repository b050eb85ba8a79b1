package middleware

import (
	"context"
	"net/http"

	"github.com/platinummonkey/folio/pkg/contextkeys"
	"github.com/platinummonkey/folio/pkg/tenants"
)

// TenantLoader loads a tenant by ID.
type TenantLoader interface {
	Get(ctx context.Context, id int64) (*tenants.Tenant, error)
}

// TenantMiddleware resolves the authenticated user's tenant into the request
// context and rejects users of deactivated tenants.
//
// MUST run after AuthMiddleware. Users without a tenant pass through with no
// tenant in context; the domain services deny them anything tenant-scoped.
func TenantMiddleware(loader TenantLoader) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r)
			if user == nil || user.TenantID == nil {
				next.ServeHTTP(w, r)
				return
			}

			tenant, err := loader.Get(r.Context(), *user.TenantID)
			if err != nil {
				forbiddenResponse(w, "tenant unavailable")
				return
			}
			if !tenant.Active {
				forbiddenResponse(w, "tenant is deactivated")
				return
			}

			ctx := contextkeys.WithTenant(r.Context(), tenant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetTenant returns the tenant resolved by TenantMiddleware, or nil.
func GetTenant(r *http.Request) *tenants.Tenant {
	tenant, ok := r.Context().Value(contextkeys.TenantKey).(*tenants.Tenant)
	if !ok {
		return nil
	}
	return tenant
}
