package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
	"github.com/platinummonkey/folio/pkg/visibility"
)

const submissionSelect = `
	SELECT s.id, s.journal_id, j.tenant_id, s.author_id, s.title, s.abstract,
		s.manuscript_ref, s.manuscript_size, s.status, s.submitted_at, s.updated_at
	FROM submissions s
	JOIN journals j ON j.id = s.journal_id`

const reviewSelect = `
	SELECT r.id, r.submission_id, j.tenant_id, r.reviewer_id, r.status, r.rating,
		r.recommendation, r.comments, r.created_at, r.completed_at
	FROM reviews r
	JOIN submissions s ON s.id = r.submission_id
	JOIN journals j ON j.id = s.journal_id`

// GetSubmission returns a submission visible to actor. Invisible
// submissions are reported as not found.
func (s *Service) GetSubmission(ctx context.Context, actor *auth.User, id int64) (*Submission, error) {
	sub, err := loadSubmission(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !visibility.For(actor).AllowsSubmission(sub.AuthorID, sub.TenantID) {
		return nil, errs.NotFoundf("get_submission", "submission")
	}
	return sub, nil
}

// ListSubmissions returns visible submissions, newest first.
func (s *Service) ListSubmissions(ctx context.Context, actor *auth.User, f Filter) ([]*Submission, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, errs.Invalid("list_submissions", "status")
	}

	var a database.Args
	where := []string{visibility.For(actor).Submissions(&a)}
	if f.JournalID != 0 {
		where = append(where, "s.journal_id = "+a.Add(f.JournalID))
	}
	if f.Status != "" {
		where = append(where, "s.status = "+a.Add(f.Status))
	}
	if f.AuthorID != 0 {
		where = append(where, "s.author_id = "+a.Add(f.AuthorID))
	}

	query := submissionSelect + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY s.submitted_at DESC, s.id DESC" + page(&a, f.Limit, f.Offset)
	return s.querySubmissions(ctx, query, a.Values()...)
}

// SearchSubmissions matches title or abstract case-insensitively among
// visible submissions.
func (s *Service) SearchSubmissions(ctx context.Context, actor *auth.User, q string, status Status) ([]*Submission, error) {
	if status != "" && !status.Valid() {
		return nil, errs.Invalid("search_submissions", "status")
	}
	q = strings.TrimSpace(q)
	if q == "" {
		return []*Submission{}, nil
	}

	var a database.Args
	pattern := a.Add(database.ContainsPattern(strings.ToLower(q))) + database.LikeEscape
	where := []string{
		"(LOWER(s.title) LIKE " + pattern + " OR LOWER(s.abstract) LIKE " + pattern + ")",
		visibility.For(actor).Submissions(&a),
	}
	if status != "" {
		where = append(where, "s.status = "+a.Add(status))
	}
	query := submissionSelect + " WHERE " + strings.Join(where, " AND ") +
		" ORDER BY s.submitted_at DESC, s.id DESC" + page(&a, 0, 0)
	return s.querySubmissions(ctx, query, a.Values()...)
}

// ListReviews returns visible reviews.
func (s *Service) ListReviews(ctx context.Context, actor *auth.User, f ReviewFilter) ([]*Review, error) {
	var a database.Args
	where := []string{visibility.For(actor).Reviews(&a)}
	if f.SubmissionID != 0 {
		where = append(where, "r.submission_id = "+a.Add(f.SubmissionID))
	}
	if f.Status != "" {
		where = append(where, "r.status = "+a.Add(f.Status))
	}
	query := reviewSelect + " WHERE " + strings.Join(where, " AND ") + " ORDER BY r.created_at DESC, r.id DESC"

	rows, err := s.db.QueryContext(ctx, query, a.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	out := []*Review{}
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate reviews: %w", err)
	}
	return out, nil
}

// GetReview returns a review visible to actor.
func (s *Service) GetReview(ctx context.Context, actor *auth.User, id int64) (*Review, error) {
	r, err := loadReview(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !visibility.For(actor).AllowsReview(r.ReviewerID, r.TenantID) {
		return nil, errs.NotFoundf("get_review", "review")
	}
	return r, nil
}

// SubmissionHistory returns the status changes of a visible submission,
// oldest first.
func (s *Service) SubmissionHistory(ctx context.Context, actor *auth.User, id int64) ([]*HistoryEntry, error) {
	if _, err := s.GetSubmission(ctx, actor, id); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, submission_id, from_status, to_status, changed_by, reason, changed_at
		FROM submission_status_history
		WHERE submission_id = $1
		ORDER BY changed_at, id
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	out := []*HistoryEntry{}
	for rows.Next() {
		var (
			h         HistoryEntry
			from      sql.NullString
			changedBy sql.NullInt64
		)
		if err := rows.Scan(&h.ID, &h.SubmissionID, &from, &h.To, &changedBy, &h.Reason, &h.ChangedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history: %w", err)
		}
		h.From = Status(from.String)
		if changedBy.Valid {
			h.ChangedBy = &changedBy.Int64
		}
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return out, nil
}

// Dashboard counts visible submissions by status and the actor's pending
// reviews. The two queries run concurrently.
func (s *Service) Dashboard(ctx context.Context, actor *auth.User) (*Dashboard, error) {
	if actor == nil {
		return nil, errs.Denied("dashboard")
	}
	d := &Dashboard{ByStatus: map[Status]int{}}
	for _, st := range Statuses {
		d.ByStatus[st] = 0
	}

	g, gctx := errgroup.WithContext(ctx)
	var byStatus map[Status]int
	g.Go(func() error {
		var a database.Args
		counts, err := s.countByStatus(gctx, "JOIN journals j ON j.id = s.journal_id WHERE "+visibility.For(actor).Submissions(&a), a.Values()...)
		byStatus = counts
		return err
	})
	g.Go(func() error {
		err := s.db.QueryRowContext(gctx, `
			SELECT COUNT(*) FROM reviews WHERE reviewer_id = $1 AND status = $2
		`, actor.ID, ReviewPending).Scan(&d.PendingReviews)
		if err != nil {
			return fmt.Errorf("failed to count pending reviews: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for st, n := range byStatus {
		d.ByStatus[st] = n
		d.Total += n
	}
	return d, nil
}

// AuthorStats summarises the actor's own submissions. The acceptance rate
// is accepted over decided submissions, 0 when nothing has been decided.
func (s *Service) AuthorStats(ctx context.Context, actor *auth.User) (*AuthorStats, error) {
	if actor == nil {
		return nil, errs.Denied("author_stats")
	}
	counts, err := s.countByStatus(ctx, "WHERE s.author_id = $1", actor.ID)
	if err != nil {
		return nil, err
	}

	st := &AuthorStats{
		Accepted:    counts[StatusAccepted],
		Rejected:    counts[StatusRejected],
		UnderReview: counts[StatusUnderReview],
	}
	for _, n := range counts {
		st.Total += n
	}
	if decided := st.Accepted + st.Rejected; decided > 0 {
		st.AcceptanceRate = float64(st.Accepted) / float64(decided)
	}
	return st, nil
}

func (s *Service) countByStatus(ctx context.Context, clause string, args ...any) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT s.status, COUNT(*) FROM submissions s `+clause+` GROUP BY s.status`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to count submissions: %w", err)
	}
	defer rows.Close()

	counts := map[Status]int{}
	for rows.Next() {
		var (
			st Status
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

func (s *Service) querySubmissions(ctx context.Context, query string, args ...any) ([]*Submission, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	out := []*Submission{}
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate submissions: %w", err)
	}
	return out, nil
}

// page appends LIMIT/OFFSET, clamping the limit.
func page(a *database.Args, limit, offset int) string {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return " LIMIT " + a.Add(limit) + " OFFSET " + a.Add(offset)
}

func loadSubmission(ctx context.Context, q database.Querier, id int64) (*Submission, error) {
	sub, err := scanSubmission(q.QueryRowContext(ctx, submissionSelect+" WHERE s.id = $1", id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("get_submission", "submission")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get submission: %w", err)
	}
	return sub, nil
}

func loadReview(ctx context.Context, q database.Querier, id int64) (*Review, error) {
	r, err := scanReview(q.QueryRowContext(ctx, reviewSelect+" WHERE r.id = $1", id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("get_review", "review")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get review: %w", err)
	}
	return r, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row rowScanner) (*Submission, error) {
	var sub Submission
	err := row.Scan(&sub.ID, &sub.JournalID, &sub.TenantID, &sub.AuthorID, &sub.Title, &sub.Abstract,
		&sub.ManuscriptRef, &sub.ManuscriptSize, &sub.Status, &sub.SubmittedAt, &sub.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func scanReview(row rowScanner) (*Review, error) {
	var (
		r              Review
		rating         sql.NullInt64
		recommendation sql.NullString
		comments       sql.NullString
		completedAt    sql.NullTime
	)
	err := row.Scan(&r.ID, &r.SubmissionID, &r.TenantID, &r.ReviewerID, &r.Status, &rating,
		&recommendation, &comments, &r.CreatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if rating.Valid {
		v := int(rating.Int64)
		r.Rating = &v
	}
	r.Recommendation = Recommendation(recommendation.String)
	r.Comments = comments.String
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	return &r, nil
}
