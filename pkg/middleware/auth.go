package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
)

// TokenValidator resolves a bearer token to its stored record.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*auth.APIToken, error)
}

// UserLoader loads a user with its role set.
type UserLoader interface {
	GetUser(ctx context.Context, id int64) (*auth.User, error)
}

// AuthMiddleware authenticates bearer tokens and attaches the user to the
// request context.
type AuthMiddleware struct {
	tokens   TokenValidator
	users    UserLoader
	optional bool // If true, allow requests without auth
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens TokenValidator, users UserLoader, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		tokens:   tokens,
		users:    users,
		optional: optional,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			unauthorizedResponse(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			unauthorizedResponse(w, "invalid authorization header format")
			return
		}

		apiToken, err := m.tokens.Validate(r.Context(), parts[1])
		if err != nil {
			unauthorizedResponse(w, "invalid or expired token")
			return
		}

		user, err := m.users.GetUser(r.Context(), apiToken.UserID)
		if err != nil || !user.Active {
			unauthorizedResponse(w, "account unavailable")
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), &auth.AuthContext{User: user, Token: apiToken})
		ctx = contextkeys.WithUserID(ctx, strconv.FormatInt(user.ID, 10))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorizedResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

func forbiddenResponse(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	w.Write([]byte(`{"error":"` + message + `"}`))
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(r *http.Request) *auth.User {
	authCtx := GetAuthContext(r)
	if authCtx == nil {
		return nil
	}
	return authCtx.User
}

// RequireAuth rejects requests that reached the handler without a user, for
// routes mounted behind an optional AuthMiddleware.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if CurrentUser(r) == nil {
			unauthorizedResponse(w, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
