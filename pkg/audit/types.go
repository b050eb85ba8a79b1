package audit

import (
	"time"
)

// EventType represents the category of audit event
type EventType string

const (
	// Authentication events
	EventLogin        EventType = "auth.login"
	EventLoginFailed  EventType = "auth.login_failed"
	EventTokenCreate  EventType = "auth.token_create"
	EventTokenRevoke  EventType = "auth.token_revoke"
	EventPasswordSet  EventType = "auth.password_change"
	EventAccessDenied EventType = "authz.access_denied"

	// Identity events
	EventRoleAssigned   EventType = "authz.role_assigned"
	EventRoleRevoked    EventType = "authz.role_revoked"
	EventUserCreate     EventType = "admin.user_create"
	EventUserDeactivate EventType = "admin.user_deactivate"
	EventUserRegister   EventType = "auth.register"
	EventProfileUpdate  EventType = "data.profile_update"
	EventTenantOnboard  EventType = "admin.tenant_onboard"

	// Editorial events
	EventJournalCreate      EventType = "data.journal_create"
	EventJournalUpdate      EventType = "data.journal_update"
	EventSubmissionCreate   EventType = "data.submission_create"
	EventReviewerAssign     EventType = "data.reviewer_assign"
	EventReviewSubmit       EventType = "data.review_submit"
	EventStatusChange       EventType = "data.status_change"
	EventManuscriptUpload   EventType = "data.manuscript_upload"
	EventManuscriptDownload EventType = "access.manuscript_download"

	// Peripheral content
	EventBlogPublish EventType = "data.blog_publish"
	EventBlogDelete  EventType = "data.blog_delete"
)

// EventStatus represents the outcome of an event
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusFailure EventStatus = "failure"
	StatusDenied  EventStatus = "denied"
)

// ResourceType represents the type of resource being accessed
type ResourceType string

const (
	ResourceUser       ResourceType = "user"
	ResourceRole       ResourceType = "role"
	ResourceToken      ResourceType = "token"
	ResourceJournal    ResourceType = "journal"
	ResourceSubmission ResourceType = "submission"
	ResourceReview     ResourceType = "review"
	ResourceManuscript ResourceType = "manuscript"
	ResourceBlogPost   ResourceType = "blog_post"
	ResourceRequest    ResourceType = "request"
	ResourceTenant     ResourceType = "tenant"
)

// Event represents a single audit log entry
type Event struct {
	ID        int64       `json:"id"`
	EventID   string      `json:"event_id"`
	Timestamp time.Time   `json:"timestamp"`
	EventType EventType   `json:"event_type"`
	Status    EventStatus `json:"status"`

	// Actor information
	UserID   *int64 `json:"user_id,omitempty"`
	TenantID *int64 `json:"tenant_id,omitempty"`

	ResourceType ResourceType `json:"resource_type,omitempty"`
	ResourceID   string       `json:"resource_id,omitempty"`

	// Request context
	IPAddress string `json:"ip_address,omitempty"`
	RequestID string `json:"request_id,omitempty"`

	Message  string                 `json:"message,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// SearchFilter represents filters for searching audit logs
type SearchFilter struct {
	StartTime *time.Time
	EndTime   *time.Time

	UserID   *int64
	TenantID *int64

	EventTypes []EventType
	Status     *EventStatus

	ResourceType ResourceType
	ResourceID   string

	Limit  int
	Offset int
}

// ExportFormat represents the format for exporting audit logs
type ExportFormat string

const (
	ExportFormatJSON   ExportFormat = "json"
	ExportFormatCSV    ExportFormat = "csv"
	ExportFormatNDJSON ExportFormat = "ndjson" // Newline-delimited JSON
)
