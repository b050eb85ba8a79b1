package rbac

import (
	"database/sql"
	"net/http"
	"sort"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
)

// Handlers exposes read-only role information. Role assignment lives with
// the identity service, which owns the tenant checks.
type Handlers struct {
	store *Store
}

// NewHandlers creates new RBAC handlers
func NewHandlers(db *sql.DB) *Handlers {
	return &Handlers{store: NewStore(db)}
}

// RegisterRoutes registers all RBAC routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/roles", h.ListRoles).Methods("GET")
	router.HandleFunc("/me/permissions", h.MyPermissions).Methods("GET")
}

// ListRoles handles GET /roles
func (h *Handlers) ListRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, roles)
}

// PermissionsResponse lists the effective grants of the caller.
type PermissionsResponse struct {
	Roles       []auth.RoleName   `json:"roles"`
	Permissions []auth.Permission `json:"permissions"`
}

// MyPermissions handles GET /me/permissions
func (h *Handlers) MyPermissions(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	if user == nil {
		httputil.WriteUnauthorized(w, "authentication required")
		return
	}
	httputil.WriteSuccess(w, PermissionsResponse{
		Roles:       user.RoleNames(),
		Permissions: EffectivePermissions(user),
	})
}

// EffectivePermissions returns the sorted union of permissions granted by
// u's roles.
func EffectivePermissions(u *auth.User) []auth.Permission {
	seen := make(map[auth.Permission]bool)
	for _, r := range u.Roles {
		for p, ok := range r.Permissions {
			if ok {
				seen[p] = true
			}
		}
	}
	perms := make([]auth.Permission, 0, len(seen))
	for p := range seen {
		perms = append(perms, p)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i] < perms[j] })
	return perms
}
