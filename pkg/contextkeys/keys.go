// Package contextkeys provides centralized context key definitions.
//
// All context keys used across folio are defined here so that producers and
// consumers agree on the key and the stored type.
//
//	ctx = contextkeys.WithAuth(ctx, authCtx)
//	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: middleware.AuthMiddleware
	// Required by: all protected endpoints, rbac middleware
	AuthKey Key = "auth_context"

	// TenantKey contains *tenants.Tenant
	// Set by: middleware.TenantMiddleware
	// Required by: tenant-scoped endpoints
	TenantKey Key = "tenant"

	// RequestIDKey contains the request ID string (UUID)
	// Set by: middleware.RequestID
	// Used by: logger, audit trail
	RequestIDKey Key = "request_id"

	// UserIDKey contains the authenticated user ID as a string
	// Set by: middleware.AuthMiddleware
	// Used by: logger, rate limiter
	UserIDKey Key = "user_id"

	// LoggerKey contains *observability.Logger
	LoggerKey Key = "logger"

	// AuditLoggerKey contains audit.Logger
	// Set by: audit.Middleware
	AuditLoggerKey Key = "audit_logger"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithTenant adds the resolved tenant to the context
func WithTenant(ctx context.Context, tenant interface{}) context.Context {
	return context.WithValue(ctx, TenantKey, tenant)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// WithAuditLogger adds audit logger to the context
func WithAuditLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, AuditLoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
