package audit

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/contextkeys"
)

// Logger is the interface for audit logging
type Logger interface {
	Log(ctx context.Context, event *Event) error
	Close() error
}

type contextKey string

const clientIPKey contextKey = "audit_client_ip"

// clock stamps events built by Record; tests replace it.
var clock = clockwork.NewRealClock()

// WithLogger adds an audit logger to the context
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return contextkeys.WithAuditLogger(ctx, logger)
}

// FromContext retrieves the audit logger from context
func FromContext(ctx context.Context) Logger {
	if logger, ok := ctx.Value(contextkeys.AuditLoggerKey).(Logger); ok {
		return logger
	}
	return NewNoOpLogger()
}

// WithClientIP stores the caller's address for events recorded later in the
// request.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// NewNoOpLogger returns a logger that drops every event.
func NewNoOpLogger() Logger {
	return noOpLogger{}
}

type noOpLogger struct{}

func (noOpLogger) Log(ctx context.Context, event *Event) error { return nil }
func (noOpLogger) Close() error                                { return nil }

// NewEvent builds an event with actor and request details taken from ctx.
func NewEvent(ctx context.Context, eventType EventType, status EventStatus) *Event {
	event := &Event{
		EventID:   uuid.New().String(),
		Timestamp: clock.Now().UTC(),
		EventType: eventType,
		Status:    status,
		RequestID: contextkeys.GetRequestID(ctx),
		Metadata:  make(map[string]interface{}),
	}
	if ip, ok := ctx.Value(clientIPKey).(string); ok {
		event.IPAddress = ip
	}
	if authCtx, ok := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext); ok && authCtx.User != nil {
		id := authCtx.User.ID
		event.UserID = &id
		if authCtx.User.TenantID != nil {
			tenantID := *authCtx.User.TenantID
			event.TenantID = &tenantID
		}
	}
	return event
}

// Record logs a successful operation on a resource.
func Record(ctx context.Context, eventType EventType, resourceType ResourceType, resourceID, message string, metadata map[string]interface{}) error {
	event := NewEvent(ctx, eventType, StatusSuccess)
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = message
	for k, v := range metadata {
		event.Metadata[k] = v
	}
	return FromContext(ctx).Log(ctx, event)
}

// RecordDenied logs a rejected attempt.
func RecordDenied(ctx context.Context, resourceType ResourceType, resourceID, reason string) error {
	event := NewEvent(ctx, EventAccessDenied, StatusDenied)
	event.ResourceType = resourceType
	event.ResourceID = resourceID
	event.Message = "Access denied: " + reason
	return FromContext(ctx).Log(ctx, event)
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
