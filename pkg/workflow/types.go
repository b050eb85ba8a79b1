package workflow

import "time"

// Status is a submission state.
type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusUnderReview Status = "under_review"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
)

// Statuses lists every submission state in workflow order.
var Statuses = []Status{StatusSubmitted, StatusUnderReview, StatusAccepted, StatusRejected}

// Valid reports whether s is a known state.
func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusUnderReview, StatusAccepted, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether s is an editorial decision.
func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusRejected
}

// ReviewStatus is the state of a review.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewCompleted ReviewStatus = "completed"
)

// Recommendation is a reviewer's suggested decision.
type Recommendation string

const (
	RecommendAccept        Recommendation = "accept"
	RecommendMinorRevision Recommendation = "minor_revision"
	RecommendMajorRevision Recommendation = "major_revision"
	RecommendReject        Recommendation = "reject"
)

// Valid reports whether r is a known recommendation.
func (r Recommendation) Valid() bool {
	switch r {
	case RecommendAccept, RecommendMinorRevision, RecommendMajorRevision, RecommendReject:
		return true
	}
	return false
}

// Submission is a manuscript submitted to a journal. TenantID is resolved
// through the journal.
type Submission struct {
	ID             int64     `json:"id"`
	JournalID      int64     `json:"journal_id"`
	TenantID       int64     `json:"tenant_id"`
	AuthorID       int64     `json:"author_id"`
	Title          string    `json:"title"`
	Abstract       string    `json:"abstract"`
	ManuscriptRef  string    `json:"manuscript_ref,omitempty"`
	ManuscriptSize int64     `json:"manuscript_size,omitempty"`
	Status         Status    `json:"status"`
	SubmittedAt    time.Time `json:"submitted_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Review is a reviewer's assignment on a submission.
type Review struct {
	ID             int64          `json:"id"`
	SubmissionID   int64          `json:"submission_id"`
	TenantID       int64          `json:"tenant_id"`
	ReviewerID     int64          `json:"reviewer_id"`
	Status         ReviewStatus   `json:"status"`
	Rating         *int           `json:"rating,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	Comments       string         `json:"comments,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
}

// ReviewInput is the outcome a reviewer submits.
type ReviewInput struct {
	Comments       string         `json:"comments"`
	Rating         *int           `json:"rating,omitempty"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
}

// HistoryEntry records one status change. From is empty for the initial
// submission.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	SubmissionID int64     `json:"submission_id"`
	From         Status    `json:"from_status,omitempty"`
	To           Status    `json:"to_status"`
	ChangedBy    *int64    `json:"changed_by,omitempty"`
	Reason       string    `json:"reason,omitempty"`
	ChangedAt    time.Time `json:"changed_at"`
}

// Filter narrows a submission listing. Zero values are ignored.
type Filter struct {
	JournalID int64
	Status    Status
	AuthorID  int64
	Limit     int
	Offset    int
}

// ReviewFilter narrows a review listing. Zero values are ignored.
type ReviewFilter struct {
	SubmissionID int64
	Status       ReviewStatus
}

// Dashboard summarises the submissions a user can see.
type Dashboard struct {
	ByStatus       map[Status]int `json:"by_status"`
	Total          int            `json:"total"`
	PendingReviews int            `json:"pending_reviews"`
}

// AuthorStats summarises a user's own submissions.
type AuthorStats struct {
	Total          int     `json:"total"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	UnderReview    int     `json:"under_review"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)
