package identity

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/platinummonkey/folio/pkg/audit"
	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/errs"
	"github.com/platinummonkey/folio/pkg/httputil"
	"github.com/platinummonkey/folio/pkg/middleware"
	"github.com/platinummonkey/folio/pkg/rbac"
	"github.com/platinummonkey/folio/pkg/tenants"
)

// DefaultTokenTTL is the lifetime of tokens issued by POST /auth/tokens.
const DefaultTokenTTL = 30 * 24 * time.Hour

// Handlers provides HTTP handlers for identity operations
type Handlers struct {
	service *Service
	tokens  *auth.TokenStore
}

// NewHandlers creates new identity handlers
func NewHandlers(service *Service, tokens *auth.TokenStore) *Handlers {
	return &Handlers{service: service, tokens: tokens}
}

// RegisterPublicRoutes registers routes that do not require a token.
func (h *Handlers) RegisterPublicRoutes(router *mux.Router) {
	router.HandleFunc("/auth/tokens", h.createToken).Methods("POST")
	router.HandleFunc("/auth/register", h.register).Methods("POST")
	router.HandleFunc("/auth/onboard", h.onboard).Methods("POST")
}

// RegisterRoutes registers authenticated identity routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/me", h.me).Methods("GET")
	router.HandleFunc("/me", h.updateProfile).Methods("PATCH")
	router.HandleFunc("/me/password", h.changePassword).Methods("PUT")
	router.HandleFunc("/auth/tokens/{id}", h.revokeToken).Methods("DELETE")
	router.HandleFunc("/users", h.listUsers).Methods("GET")
	router.HandleFunc("/users/reviewers", h.listReviewers).Methods("GET")
	router.HandleFunc("/users/{id}/roles/{role}", h.assignRole).Methods("POST")
	router.HandleFunc("/users/{id}/roles/{role}", h.revokeRole).Methods("DELETE")
	router.HandleFunc("/users/{id}/deactivate", h.deactivate).Methods("POST")
}

// CreateTokenRequest exchanges credentials for a bearer token.
type CreateTokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// CreateTokenResponse carries the plaintext token. It is shown once.
type CreateTokenResponse struct {
	Token     string         `json:"token"`
	TokenInfo *auth.APIToken `json:"token_info"`
}

// createToken handles POST /auth/tokens
func (h *Handlers) createToken(w http.ResponseWriter, r *http.Request) {
	var req CreateTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		if errs.KindOf(err) == errs.PermissionDenied {
			event := audit.NewEvent(r.Context(), audit.EventLoginFailed, audit.StatusFailure)
			event.Message = "invalid credentials"
			_ = audit.FromContext(r.Context()).Log(r.Context(), event)
			httputil.WriteUnauthorized(w, "invalid credentials")
			return
		}
		httputil.WriteDomainError(w, r, err)
		return
	}

	name := req.Name
	if name == "" {
		name = "api"
	}
	info, token, err := h.tokens.Create(r.Context(), user.ID, name, DefaultTokenTTL)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	event := audit.NewEvent(r.Context(), audit.EventTokenCreate, audit.StatusSuccess)
	event.UserID = &user.ID
	event.TenantID = user.TenantID
	event.ResourceType = audit.ResourceToken
	event.ResourceID = strconv.FormatInt(info.ID, 10)
	_ = audit.FromContext(r.Context()).Log(r.Context(), event)

	httputil.WriteCreated(w, CreateTokenResponse{Token: token, TokenInfo: info})
}

// revokeToken handles DELETE /auth/tokens/{id}
func (h *Handlers) revokeToken(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.tokens.Revoke(r.Context(), user.ID, id); err != nil {
		if err == auth.ErrInvalidToken {
			httputil.WriteErrorMessage(w, http.StatusNotFound, "token not found")
			return
		}
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventTokenRevoke, audit.ResourceToken, strconv.FormatInt(id, 10), "token revoked", nil)
	httputil.WriteNoContent(w)
}

// MeResponse describes the caller.
type MeResponse struct {
	*auth.User
	Permissions []auth.Permission `json:"permissions"`
}

// me handles GET /me
func (h *Handlers) me(w http.ResponseWriter, r *http.Request) {
	user := middleware.CurrentUser(r)
	httputil.WriteSuccess(w, MeResponse{User: user, Permissions: rbac.EffectivePermissions(user)})
}

// RegisterRequest is a self-service sign-up.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// register handles POST /auth/register
func (h *Handlers) register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.Register(r.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	event := audit.NewEvent(r.Context(), audit.EventUserRegister, audit.StatusSuccess)
	event.UserID = &user.ID
	event.ResourceType = audit.ResourceUser
	event.ResourceID = strconv.FormatInt(user.ID, 10)
	_ = audit.FromContext(r.Context()).Log(r.Context(), event)

	httputil.WriteCreated(w, user)
}

// OnboardRequest creates a tenant and its first administrator.
type OnboardRequest struct {
	TenantName string `json:"tenant_name"`
	Subdomain  string `json:"subdomain"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name"`
}

// OnboardResponse carries the created tenant and administrator.
type OnboardResponse struct {
	Tenant *tenants.Tenant `json:"tenant"`
	User   *auth.User      `json:"user"`
}

// onboard handles POST /auth/onboard
func (h *Handlers) onboard(w http.ResponseWriter, r *http.Request) {
	var req OnboardRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	tenant, user, err := h.service.Onboard(r.Context(), req.TenantName, req.Subdomain, req.Email, req.Password, req.Name)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}

	event := audit.NewEvent(r.Context(), audit.EventTenantOnboard, audit.StatusSuccess)
	event.UserID = &user.ID
	event.TenantID = &tenant.ID
	event.ResourceType = audit.ResourceTenant
	event.ResourceID = strconv.FormatInt(tenant.ID, 10)
	_ = audit.FromContext(r.Context()).Log(r.Context(), event)

	httputil.WriteCreated(w, OnboardResponse{Tenant: tenant, User: user})
}

// UpdateProfileRequest edits the caller's own profile.
type UpdateProfileRequest struct {
	Name string `json:"name"`
}

// updateProfile handles PATCH /me
func (h *Handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := h.service.UpdateProfile(r.Context(), middleware.CurrentUser(r), req.Name)
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventProfileUpdate, audit.ResourceUser, strconv.FormatInt(user.ID, 10), "profile updated", nil)
	httputil.WriteSuccess(w, user)
}

// ChangePasswordRequest replaces the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// changePassword handles PUT /me/password
func (h *Handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user := middleware.CurrentUser(r)
	if err := h.service.ChangePassword(r.Context(), user, req.CurrentPassword, req.NewPassword); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventPasswordSet, audit.ResourceUser, strconv.FormatInt(user.ID, 10), "password changed", nil)
	httputil.WriteNoContent(w)
}

// listUsers handles GET /users
func (h *Handlers) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListTenantUsers(r.Context(), middleware.CurrentUser(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// listReviewers handles GET /users/reviewers
func (h *Handlers) listReviewers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListReviewers(r.Context(), middleware.CurrentUser(r))
	if err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, users)
}

// assignRole handles POST /users/{id}/roles/{role}
func (h *Handlers) assignRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	role := auth.RoleName(mux.Vars(r)["role"])

	if err := h.service.AssignRole(r.Context(), middleware.CurrentUser(r), id, role); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventRoleAssigned, audit.ResourceUser, strconv.FormatInt(id, 10),
		"role assigned", map[string]interface{}{"role": string(role)})
	httputil.WriteNoContent(w)
}

// revokeRole handles DELETE /users/{id}/roles/{role}
func (h *Handlers) revokeRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	role := auth.RoleName(mux.Vars(r)["role"])

	if err := h.service.RevokeRole(r.Context(), middleware.CurrentUser(r), id, role); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventRoleRevoked, audit.ResourceUser, strconv.FormatInt(id, 10),
		"role revoked", map[string]interface{}{"role": string(role)})
	httputil.WriteNoContent(w)
}

// deactivate handles POST /users/{id}/deactivate
func (h *Handlers) deactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.Deactivate(r.Context(), middleware.CurrentUser(r), id); err != nil {
		httputil.WriteDomainError(w, r, err)
		return
	}
	_ = audit.Record(r.Context(), audit.EventUserDeactivate, audit.ResourceUser, strconv.FormatInt(id, 10), "user deactivated", nil)
	httputil.WriteNoContent(w)
}
