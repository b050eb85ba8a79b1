package rbac

import (
	"net/http"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
)

// Require guards a route with an authorization requirement. Any of the
// given requirements suffices.
func Require(reqs ...Requirement) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := middleware.CurrentUser(r)
			if user == nil {
				httputil.WriteUnauthorized(w, "authentication required")
				return
			}

			for _, req := range reqs {
				if Authorize(user, req) {
					next.ServeHTTP(w, r)
					return
				}
			}
			httputil.WriteForbidden(w, "insufficient permissions")
		})
	}
}

// RequireRole guards a route with any of the named roles.
func RequireRole(names ...auth.RoleName) func(http.Handler) http.Handler {
	reqs := make([]Requirement, 0, len(names))
	for _, n := range names {
		reqs = append(reqs, Role(n))
	}
	return Require(reqs...)
}

// RequirePermission guards a route with a permission key.
func RequirePermission(p auth.Permission) func(http.Handler) http.Handler {
	return Require(Perm(p))
}
