// Package blog lets tenant members write and publish blog posts.
//
// Posts are drafts until published. Published posts are public; drafts are
// visible to their author and to staff of the author's tenant, who may also
// edit, publish or delete them.
package blog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
	"github.com/platinummonkey/folio/pkg/rbac"
)

// Status is a post's publication state.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// ExcerptLength is the number of runes kept when an excerpt is derived from
// the content.
const ExcerptLength = 200

// Post is a blog post.
type Post struct {
	ID          int64      `json:"id"`
	TenantID    *int64     `json:"tenant_id,omitempty"`
	AuthorID    int64      `json:"author_id"`
	Title       string     `json:"title"`
	Content     string     `json:"content"`
	Excerpt     string     `json:"excerpt"`
	Status      Status     `json:"status"`
	ViewsCount  int        `json:"views_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
}

// PostInput carries editable fields. Publish publishes a new post
// immediately.
type PostInput struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Excerpt string `json:"excerpt"`
	Publish bool   `json:"publish"`
}

// Service manages blog posts
type Service struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewService creates a blog service
func NewService(db *sql.DB, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{db: db, clock: clock}
}

const postColumns = `id, tenant_id, author_id, title, content, excerpt, status, views_count, created_at, updated_at, published_at`

// MakeExcerpt returns the first ExcerptLength runes of content, marked with
// an ellipsis when truncated.
func MakeExcerpt(content string) string {
	if utf8.RuneCountInString(content) <= ExcerptLength {
		return content
	}
	return string([]rune(content)[:ExcerptLength]) + "..."
}

func (in *PostInput) normalize(op string) error {
	in.Title = strings.TrimSpace(in.Title)
	in.Content = strings.TrimSpace(in.Content)
	in.Excerpt = strings.TrimSpace(in.Excerpt)
	if in.Title == "" {
		return errs.Invalid(op, "title")
	}
	if in.Content == "" {
		return errs.Invalid(op, "content")
	}
	if in.Excerpt == "" {
		in.Excerpt = MakeExcerpt(in.Content)
	}
	return nil
}

// canWrite reports whether actor may create posts.
func canWrite(actor *auth.User) bool {
	return rbac.HasPermission(actor, auth.PermCreateBlogPosts) || rbac.IsStaff(actor)
}

// canManage reports whether actor may edit p: its author, or staff of the
// post's tenant.
func canManage(actor *auth.User, p *Post) bool {
	if actor == nil {
		return false
	}
	if actor.ID == p.AuthorID {
		return true
	}
	return rbac.IsStaff(actor) && p.TenantID != nil && rbac.SameTenant(actor, *p.TenantID)
}

// Create writes a new post in the actor's tenant.
func (s *Service) Create(ctx context.Context, actor *auth.User, in PostInput) (*Post, error) {
	const op = "create_post"
	if !canWrite(actor) {
		return nil, errs.Denied(op)
	}
	if err := in.normalize(op); err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	p := &Post{
		TenantID:  actor.TenantID,
		AuthorID:  actor.ID,
		Title:     in.Title,
		Content:   in.Content,
		Excerpt:   in.Excerpt,
		Status:    StatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if in.Publish {
		p.Status = StatusPublished
		p.PublishedAt = &now
	}

	err := s.db.QueryRowContext(ctx, `
		INSERT INTO blog_posts (tenant_id, author_id, title, content, excerpt, status, views_count, created_at, updated_at, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, $7, $8, $9)
		RETURNING id
	`, p.TenantID, p.AuthorID, p.Title, p.Content, p.Excerpt, p.Status, now, now, p.PublishedAt).Scan(&p.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}
	return p, nil
}

// Get returns a post. Reading a published post counts a view; drafts are
// reported as not found to anyone who cannot manage them.
func (s *Service) Get(ctx context.Context, actor *auth.User, id int64) (*Post, error) {
	p, err := loadPost(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if p.Status != StatusPublished {
		if !canManage(actor, p) {
			return nil, errs.NotFoundf("get_post", "post")
		}
		return p, nil
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE blog_posts SET views_count = views_count + 1 WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("failed to count view: %w", err)
	}
	p.ViewsCount++
	return p, nil
}

// Update edits a post's title, content and excerpt.
func (s *Service) Update(ctx context.Context, actor *auth.User, id int64, in PostInput) (*Post, error) {
	const op = "update_post"
	if err := in.normalize(op); err != nil {
		return nil, err
	}
	return s.mutate(ctx, op, actor, id, func(p *Post, now time.Time) (string, []any) {
		p.Title, p.Content, p.Excerpt = in.Title, in.Content, in.Excerpt
		return `title = $1, content = $2, excerpt = $3`, []any{p.Title, p.Content, p.Excerpt}
	})
}

// Publish makes a draft public. Publishing a published post keeps its
// original publication time.
func (s *Service) Publish(ctx context.Context, actor *auth.User, id int64) (*Post, error) {
	return s.mutate(ctx, "publish_post", actor, id, func(p *Post, now time.Time) (string, []any) {
		if p.Status != StatusPublished || p.PublishedAt == nil {
			p.PublishedAt = &now
		}
		p.Status = StatusPublished
		return `status = $1, published_at = $2`, []any{p.Status, *p.PublishedAt}
	})
}

// Unpublish returns a post to draft.
func (s *Service) Unpublish(ctx context.Context, actor *auth.User, id int64) (*Post, error) {
	return s.mutate(ctx, "unpublish_post", actor, id, func(p *Post, now time.Time) (string, []any) {
		p.Status = StatusDraft
		return `status = $1`, []any{p.Status}
	})
}

// Delete removes a post.
func (s *Service) Delete(ctx context.Context, actor *auth.User, id int64) error {
	const op = "delete_post"
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		p, err := loadPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, p) {
			return errs.Denied(op)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM blog_posts WHERE id = $1`, id); err != nil {
			return fmt.Errorf("failed to delete post: %w", err)
		}
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, op string, actor *auth.User, id int64, apply func(*Post, time.Time) (string, []any)) (*Post, error) {
	var p *Post
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		p, err = loadPost(ctx, tx, id)
		if err != nil {
			return err
		}
		if !canManage(actor, p) {
			return errs.Denied(op)
		}

		now := s.clock.Now().UTC()
		set, args := apply(p, now)
		p.UpdatedAt = now
		n := len(args)
		args = append(args, now, id)
		query := fmt.Sprintf(`UPDATE blog_posts SET %s, updated_at = $%d WHERE id = $%d`, set, n+1, n+2)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update post: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ListPublished returns published posts, newest first, optionally limited
// to one tenant.
func (s *Service) ListPublished(ctx context.Context, tenantID *int64) ([]*Post, error) {
	var a database.Args
	query := `SELECT ` + postColumns + ` FROM blog_posts WHERE status = ` + a.Add(StatusPublished)
	if tenantID != nil {
		query += ` AND tenant_id = ` + a.Add(*tenantID)
	}
	query += ` ORDER BY published_at DESC, id DESC`
	return s.query(ctx, query, a.Values()...)
}

// ListByAuthor returns the actor's own posts, drafts included.
func (s *Service) ListByAuthor(ctx context.Context, actor *auth.User) ([]*Post, error) {
	if actor == nil {
		return nil, errs.Denied("list_posts")
	}
	return s.query(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE author_id = $1 ORDER BY created_at DESC, id DESC`, actor.ID)
}

// Search matches published posts by title or content. Users with a tenant
// search their tenant's blog; others search every published post.
func (s *Service) Search(ctx context.Context, actor *auth.User, q string) ([]*Post, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*Post{}, nil
	}
	var a database.Args
	pattern := a.Add(database.ContainsPattern(strings.ToLower(q))) + database.LikeEscape
	query := `SELECT ` + postColumns + ` FROM blog_posts
		WHERE (LOWER(title) LIKE ` + pattern + ` OR LOWER(content) LIKE ` + pattern + `)
		AND status = ` + a.Add(StatusPublished)
	if actor != nil && actor.TenantID != nil {
		query += ` AND tenant_id = ` + a.Add(*actor.TenantID)
	}
	query += ` ORDER BY published_at DESC, id DESC`
	return s.query(ctx, query, a.Values()...)
}

func (s *Service) query(ctx context.Context, query string, args ...any) ([]*Post, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	out := []*Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func loadPost(ctx context.Context, q database.Querier, id int64) (*Post, error) {
	p, err := scanPost(q.QueryRowContext(ctx, `SELECT `+postColumns+` FROM blog_posts WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("get_post", "post")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get post: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (*Post, error) {
	var (
		p           Post
		tenantID    sql.NullInt64
		publishedAt sql.NullTime
	)
	err := row.Scan(&p.ID, &tenantID, &p.AuthorID, &p.Title, &p.Content, &p.Excerpt, &p.Status,
		&p.ViewsCount, &p.CreatedAt, &p.UpdatedAt, &publishedAt)
	if err != nil {
		return nil, err
	}
	if tenantID.Valid {
		p.TenantID = &tenantID.Int64
	}
	if publishedAt.Valid {
		t := publishedAt.Time
		p.PublishedAt = &t
	}
	return &p, nil
}
