package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/platinummonkey/folio/pkg/auth"
)

func builtIn(name auth.RoleName) auth.Role {
	for _, r := range BuiltInRoles() {
		if r.Name == name {
			return r
		}
	}
	panic("unknown role " + name)
}

func tenantID(id int64) *int64 { return &id }

func TestAuthorize(t *testing.T) {
	editor := &auth.User{ID: 1, TenantID: tenantID(1), Roles: []auth.Role{builtIn(auth.RoleEditor)}}
	reviewer := &auth.User{ID: 2, TenantID: tenantID(1), Roles: []auth.Role{builtIn(auth.RoleReviewer)}}
	nobody := &auth.User{ID: 3, TenantID: tenantID(1)}

	tests := []struct {
		name string
		user *auth.User
		req  Requirement
		want bool
	}{
		{"editor has editor role", editor, Role(auth.RoleEditor), true},
		{"editor lacks admin role", editor, Role(auth.RoleAdmin), false},
		{"editor may assign reviewers", editor, Perm(auth.PermAssignReviewers), true},
		{"editor may not submit reviews", editor, Perm(auth.PermSubmitReviews), false},
		{"reviewer may submit reviews", reviewer, Perm(auth.PermSubmitReviews), true},
		{"unknown permission key is a denial", reviewer, Perm("launch_rockets"), false},
		{"zero roles authorize nothing", nobody, Role(auth.RoleUser), false},
		{"zero roles no permissions", nobody, Perm(auth.PermViewJournals), false},
		{"nil user", nil, Role(auth.RoleAdmin), false},
		{"empty requirement", editor, Requirement{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Authorize(tt.user, tt.req))
		})
	}
}

func TestHasPermission_FalseEntry(t *testing.T) {
	u := &auth.User{Roles: []auth.Role{{
		Name:        "custom",
		Permissions: map[auth.Permission]bool{auth.PermMakeDecisions: false},
	}}}
	assert.False(t, HasPermission(u, auth.PermMakeDecisions))

	u.Roles = append(u.Roles, auth.Role{Name: "other", Permissions: nil})
	assert.False(t, HasPermission(u, auth.PermMakeDecisions))
}

func TestIsStaff(t *testing.T) {
	assert.True(t, IsStaff(&auth.User{Roles: []auth.Role{builtIn(auth.RoleAdmin)}}))
	assert.True(t, IsStaff(&auth.User{Roles: []auth.Role{builtIn(auth.RoleEditor)}}))
	assert.False(t, IsStaff(&auth.User{Roles: []auth.Role{builtIn(auth.RoleReviewer), builtIn(auth.RoleAuthor)}}))
}

func TestSameTenant(t *testing.T) {
	inT1 := &auth.User{ID: 1, TenantID: tenantID(1)}
	inT2 := &auth.User{ID: 2, TenantID: tenantID(2)}
	homeless := &auth.User{ID: 3}

	assert.True(t, SameTenant(inT1, 1))
	assert.False(t, SameTenant(inT1, 2))
	assert.False(t, SameTenant(homeless, 0))
	assert.False(t, SameTenant(nil, 1))

	assert.True(t, SameTenantUser(inT1, &auth.User{TenantID: tenantID(1)}))
	assert.False(t, SameTenantUser(inT1, inT2))
	assert.False(t, SameTenantUser(inT1, homeless))
	assert.False(t, SameTenantUser(homeless, homeless))
}

func TestEffectivePermissions(t *testing.T) {
	u := &auth.User{Roles: []auth.Role{builtIn(auth.RoleReviewer), builtIn(auth.RoleAuthor)}}
	assert.Equal(t, []auth.Permission{
		auth.PermCreateBlogPosts,
		auth.PermCreateSubmissions,
		auth.PermSubmitReviews,
		auth.PermViewOwnSubmissions,
		auth.PermViewSubmissions,
	}, EffectivePermissions(u))
}
