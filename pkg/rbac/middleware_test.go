package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
)

func TestRequireRole(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	guarded := RequireRole(auth.RoleAdmin, auth.RoleEditor)(ok)

	tests := []struct {
		name string
		user *auth.User
		want int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"author", &auth.User{ID: 1, Roles: []auth.Role{builtIn(auth.RoleAuthor)}}, http.StatusForbidden},
		{"editor", &auth.User{ID: 2, Roles: []auth.Role{builtIn(auth.RoleEditor)}}, http.StatusOK},
		{"admin", &auth.User{ID: 3, Roles: []auth.Role{builtIn(auth.RoleAdmin)}}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				r = r.WithContext(contextkeys.WithAuth(r.Context(), &auth.AuthContext{User: tt.user}))
			}
			w := httptest.NewRecorder()
			guarded.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestRequirePermission(t *testing.T) {
	guarded := RequirePermission(auth.PermCreateBlogPosts)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	r := httptest.NewRequest(http.MethodPost, "/blog", nil)
	user := &auth.User{ID: 1, Roles: []auth.Role{builtIn(auth.RoleReviewer)}}
	r = r.WithContext(contextkeys.WithAuth(r.Context(), &auth.AuthContext{User: user}))
	w := httptest.NewRecorder()
	guarded.ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
