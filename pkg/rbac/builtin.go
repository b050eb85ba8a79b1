package rbac

import "github.com/platinummonkey/folio/pkg/auth"

// BuiltInRoles returns the roles seeded by the schema migrations.
func BuiltInRoles() []auth.Role {
	return []auth.Role{
		{
			Name:        auth.RoleAdmin,
			Description: "Tenant administrator",
			Permissions: map[auth.Permission]bool{
				auth.PermManageUsers:         true,
				auth.PermManageJournals:      true,
				auth.PermManageSubmissions:   true,
				auth.PermManageSubscriptions: true,
				auth.PermViewAnalytics:       true,
			},
		},
		{
			Name:        auth.RoleEditor,
			Description: "Journal editor",
			Permissions: map[auth.Permission]bool{
				auth.PermManageJournals:    true,
				auth.PermManageSubmissions: true,
				auth.PermAssignReviewers:   true,
				auth.PermMakeDecisions:     true,
			},
		},
		{
			Name:        auth.RoleReviewer,
			Description: "Peer reviewer",
			Permissions: map[auth.Permission]bool{
				auth.PermViewSubmissions: true,
				auth.PermSubmitReviews:   true,
			},
		},
		{
			Name:        auth.RoleAuthor,
			Description: "Manuscript author",
			Permissions: map[auth.Permission]bool{
				auth.PermCreateSubmissions:  true,
				auth.PermViewOwnSubmissions: true,
				auth.PermCreateBlogPosts:    true,
			},
		},
		{
			Name:        auth.RoleUser,
			Description: "Registered reader",
			Permissions: map[auth.Permission]bool{
				auth.PermViewJournals:  true,
				auth.PermViewBlogPosts: true,
			},
		},
	}
}
