package auth

import "time"

// RoleName identifies a built-in role.
type RoleName string

const (
	RoleAdmin    RoleName = "admin"
	RoleEditor   RoleName = "editor"
	RoleReviewer RoleName = "reviewer"
	RoleAuthor   RoleName = "author"
	RoleUser     RoleName = "user"
)

// Permission is a key in a role's permission map.
type Permission string

const (
	PermManageUsers         Permission = "manage_users"
	PermManageJournals      Permission = "manage_journals"
	PermManageSubmissions   Permission = "manage_submissions"
	PermManageSubscriptions Permission = "manage_subscriptions"
	PermViewAnalytics       Permission = "view_analytics"
	PermAssignReviewers     Permission = "assign_reviewers"
	PermMakeDecisions       Permission = "make_decisions"
	PermViewSubmissions     Permission = "view_submissions"
	PermSubmitReviews       Permission = "submit_reviews"
	PermCreateSubmissions   Permission = "create_submissions"
	PermViewOwnSubmissions  Permission = "view_own_submissions"
	PermCreateBlogPosts     Permission = "create_blog_posts"
	PermViewJournals        Permission = "view_journals"
	PermViewBlogPosts       Permission = "view_blog_posts"
)

// Role is a named bundle of permissions.
type Role struct {
	ID          int64               `json:"id"`
	Name        RoleName            `json:"name"`
	Description string              `json:"description,omitempty"`
	Permissions map[Permission]bool `json:"permissions"`
	CreatedAt   time.Time           `json:"created_at"`
}

// User is an account. TenantID is nil until the user is assigned to a tenant.
type User struct {
	ID           int64      `json:"id"`
	TenantID     *int64     `json:"tenant_id,omitempty"`
	Email        string     `json:"email"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Active       bool       `json:"active"`
	Roles        []Role     `json:"roles"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
}

// RoleNames returns the names of the user's roles.
func (u *User) RoleNames() []RoleName {
	names := make([]RoleName, 0, len(u.Roles))
	for _, r := range u.Roles {
		names = append(names, r.Name)
	}
	return names
}

// APIToken is the persisted record of a bearer token.
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"`
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// AuthContext is attached to authenticated requests.
type AuthContext struct {
	User  *User
	Token *APIToken
}
