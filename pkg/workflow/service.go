package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
	"github.com/platinummonkey/folio/pkg/journals"
	"github.com/platinummonkey/folio/pkg/rbac"
	"github.com/platinummonkey/folio/pkg/storage"
	"github.com/platinummonkey/folio/pkg/visibility"
)

var tracer = otel.Tracer("github.com/platinummonkey/folio/pkg/workflow")

// Service runs the editorial workflow.
type Service struct {
	db        *sql.DB
	clock     clockwork.Clock
	opts      Options
	metrics   Recorder
	files     storage.FileStore
	maxUpload int64
	logger    logrus.FieldLogger
}

// NewService creates a workflow service.
func NewService(db *sql.DB, opts ...Option) *Service {
	s := &Service{
		db:      db,
		clock:   clockwork.NewRealClock(),
		metrics: nopRecorder{},
		logger:  logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Options returns the active workflow options.
func (s *Service) Options() Options {
	return s.opts
}

// run wraps a mutation with a span and an outcome metric.
func (s *Service) run(ctx context.Context, op string, actor *auth.User, fn func(ctx context.Context, span trace.Span) error) error {
	ctx, span := tracer.Start(ctx, "workflow."+op)
	defer span.End()
	if actor != nil {
		span.SetAttributes(attribute.Int64("folio.actor_id", actor.ID))
	}

	err := fn(ctx, span)
	outcome := "ok"
	if err != nil {
		outcome = errs.KindOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.metrics.RecordWorkflowOperation(op, outcome)
	return err
}

// CreateSubmission submits a manuscript to a journal. It fails with
// SubmissionsClosed whenever the journal is not accepting submissions,
// whatever the actor's role.
func (s *Service) CreateSubmission(ctx context.Context, actor *auth.User, journalID int64, title, abstract, manuscriptRef string) (*Submission, error) {
	const op = "create_submission"
	var sub *Submission
	err := s.run(ctx, op, actor, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Int64("folio.journal_id", journalID))
		if actor == nil {
			return errs.Denied(op)
		}

		return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			j, err := journals.Load(ctx, tx, journalID)
			if err != nil {
				return err
			}
			if !visibility.For(actor).AllowsJournal(j.TenantID, j.Active) {
				return errs.NotFoundf(op, "journal")
			}
			if !j.AcceptingSubmissions {
				return errs.Closed(op)
			}

			title, abstract := strings.TrimSpace(title), strings.TrimSpace(abstract)
			if title == "" {
				return errs.Invalid(op, "title")
			}
			if abstract == "" {
				return errs.Invalid(op, "abstract")
			}

			now := s.clock.Now().UTC()
			sub = &Submission{
				JournalID:     j.ID,
				TenantID:      j.TenantID,
				AuthorID:      actor.ID,
				Title:         title,
				Abstract:      abstract,
				ManuscriptRef: manuscriptRef,
				Status:        StatusSubmitted,
				SubmittedAt:   now,
				UpdatedAt:     now,
			}
			err = tx.QueryRowContext(ctx, `
				INSERT INTO submissions (journal_id, author_id, title, abstract, manuscript_ref, status, submitted_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				RETURNING id
			`, sub.JournalID, sub.AuthorID, sub.Title, sub.Abstract, sub.ManuscriptRef, sub.Status, now, now).Scan(&sub.ID)
			if err != nil {
				return fmt.Errorf("failed to create submission: %w", err)
			}
			return s.recordHistory(ctx, tx, sub.ID, "", StatusSubmitted, actor.ID, "")
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStatusTransition("", string(StatusSubmitted))
	return sub, nil
}

// AssignReviewer creates a pending review and moves the submission to
// under_review in one transaction. The status is overwritten whatever it
// was unless Options.GuardReassign is set.
func (s *Service) AssignReviewer(ctx context.Context, actor *auth.User, submissionID, reviewerID int64) (*Review, error) {
	const op = "assign_reviewer"
	var (
		review *Review
		from   Status
	)
	err := s.run(ctx, op, actor, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.Int64("folio.submission_id", submissionID),
			attribute.Int64("folio.reviewer_id", reviewerID),
		)
		if !rbac.IsStaff(actor) {
			return errs.Denied(op)
		}

		return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			sub, err := loadSubmission(ctx, tx, submissionID)
			if err != nil {
				return err
			}
			if !rbac.SameTenant(actor, sub.TenantID) {
				return errs.Denied(op)
			}

			var (
				reviewerTenant sql.NullInt64
				reviewerActive bool
			)
			err = tx.QueryRowContext(ctx, `SELECT tenant_id, active FROM users WHERE id = $1`, reviewerID).
				Scan(&reviewerTenant, &reviewerActive)
			if err == sql.ErrNoRows {
				return errs.NotFoundf(op, "reviewer")
			}
			if err != nil {
				return fmt.Errorf("failed to load reviewer: %w", err)
			}
			if !reviewerActive || !reviewerTenant.Valid || reviewerTenant.Int64 != sub.TenantID {
				return errs.Denied(op)
			}

			if s.opts.GuardReassign && sub.Status.Terminal() {
				return errs.Transition(op, string(sub.Status), string(StatusUnderReview))
			}
			if s.opts.UniqueReviewers {
				var exists bool
				err := tx.QueryRowContext(ctx, `
					SELECT EXISTS(SELECT 1 FROM reviews WHERE submission_id = $1 AND reviewer_id = $2)
				`, submissionID, reviewerID).Scan(&exists)
				if err != nil {
					return fmt.Errorf("failed to check existing reviews: %w", err)
				}
				if exists {
					return errs.Conflicting(op, "reviewer")
				}
			}

			now := s.clock.Now().UTC()
			review = &Review{
				SubmissionID: sub.ID,
				TenantID:     sub.TenantID,
				ReviewerID:   reviewerID,
				Status:       ReviewPending,
				CreatedAt:    now,
			}
			err = tx.QueryRowContext(ctx, `
				INSERT INTO reviews (submission_id, reviewer_id, status, created_at)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, review.SubmissionID, review.ReviewerID, review.Status, now).Scan(&review.ID)
			if err != nil {
				return fmt.Errorf("failed to create review: %w", err)
			}

			from = sub.Status
			if err := setStatus(ctx, tx, sub.ID, StatusUnderReview, now); err != nil {
				return err
			}
			return s.recordHistory(ctx, tx, sub.ID, from, StatusUnderReview, actor.ID, "reviewer assigned")
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStatusTransition(string(from), string(StatusUnderReview))
	return review, nil
}

// SubmitReview records the reviewer's outcome. Only the assigned reviewer
// may submit, and may resubmit to amend a completed review. The submission
// status is left alone; the editorial decision is a separate step.
func (s *Service) SubmitReview(ctx context.Context, actor *auth.User, reviewID int64, in ReviewInput) (*Review, error) {
	const op = "submit_review"
	var review *Review
	err := s.run(ctx, op, actor, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(attribute.Int64("folio.review_id", reviewID))
		if actor == nil {
			return errs.Denied(op)
		}
		if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
			return errs.Invalid(op, "rating")
		}
		if in.Recommendation != "" && !in.Recommendation.Valid() {
			return errs.Invalid(op, "recommendation")
		}

		return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			var err error
			review, err = loadReview(ctx, tx, reviewID)
			if err != nil {
				return err
			}
			if review.ReviewerID != actor.ID {
				return errs.Denied(op)
			}

			now := s.clock.Now().UTC()
			review.Status = ReviewCompleted
			review.Rating = in.Rating
			review.Recommendation = in.Recommendation
			review.Comments = strings.TrimSpace(in.Comments)
			review.CompletedAt = &now

			_, err = tx.ExecContext(ctx, `
				UPDATE reviews
				SET status = $1, rating = $2, recommendation = $3, comments = $4, completed_at = $5
				WHERE id = $6
			`, review.Status, nullInt(review.Rating), nullString(string(review.Recommendation)), review.Comments, now, review.ID)
			if err != nil {
				return fmt.Errorf("failed to submit review: %w", err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return review, nil
}

// ChangeStatus sets a submission's status. Any transition is allowed unless
// Options.StrictTransitions is set.
func (s *Service) ChangeStatus(ctx context.Context, actor *auth.User, submissionID int64, to Status, reason string) (*Submission, error) {
	const op = "change_status"
	var (
		sub  *Submission
		from Status
	)
	err := s.run(ctx, op, actor, func(ctx context.Context, span trace.Span) error {
		span.SetAttributes(
			attribute.Int64("folio.submission_id", submissionID),
			attribute.String("folio.to_status", string(to)),
		)
		if !rbac.IsStaff(actor) {
			return errs.Denied(op)
		}
		if !to.Valid() {
			return errs.Invalid(op, "status")
		}

		return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
			var err error
			sub, err = loadSubmission(ctx, tx, submissionID)
			if err != nil {
				return err
			}
			if !rbac.SameTenant(actor, sub.TenantID) {
				return errs.Denied(op)
			}
			from = sub.Status
			if err := s.opts.checkTransition(op, from, to); err != nil {
				return err
			}

			now := s.clock.Now().UTC()
			if err := setStatus(ctx, tx, sub.ID, to, now); err != nil {
				return err
			}
			sub.Status = to
			sub.UpdatedAt = now
			return s.recordHistory(ctx, tx, sub.ID, from, to, actor.ID, strings.TrimSpace(reason))
		})
	})
	if err != nil {
		return nil, err
	}
	s.metrics.RecordStatusTransition(string(from), string(to))
	s.logger.WithFields(logrus.Fields{
		"submission_id": sub.ID,
		"from":          from,
		"to":            to,
		"actor_id":      actor.ID,
	}).Info("Submission status changed")
	return sub, nil
}

func setStatus(ctx context.Context, tx *sql.Tx, id int64, status Status, now time.Time) error {
	_, err := tx.ExecContext(ctx, `UPDATE submissions SET status = $1, updated_at = $2 WHERE id = $3`, status, now, id)
	if err != nil {
		return fmt.Errorf("failed to update submission status: %w", err)
	}
	return nil
}

func (s *Service) recordHistory(ctx context.Context, tx *sql.Tx, submissionID int64, from, to Status, changedBy int64, reason string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO submission_status_history (submission_id, from_status, to_status, changed_by, reason, changed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, submissionID, nullString(string(from)), to, changedBy, reason, s.clock.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to record status history: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}
