// Package journals owns journals, the tenant-scoped containers that
// submissions are made to.
//
// Journals are created by tenant staff. The accepting-submissions flag gates
// new submissions only; toggling it never touches existing ones.
package journals

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/platinummonkey/folio/pkg/auth"
	"github.com/platinummonkey/folio/pkg/database"
	"github.com/platinummonkey/folio/pkg/errs"
	"github.com/platinummonkey/folio/pkg/rbac"
	"github.com/platinummonkey/folio/pkg/tenants"
	"github.com/platinummonkey/folio/pkg/visibility"
)

// Journal is a container for submissions.
type Journal struct {
	ID                   int64     `json:"id"`
	TenantID             int64     `json:"tenant_id"`
	Name                 string    `json:"name"`
	Description          string    `json:"description"`
	Active               bool      `json:"active"`
	AcceptingSubmissions bool      `json:"accepting_submissions"`
	CreatedBy            *int64    `json:"created_by,omitempty"`
	CreatedAt            time.Time `json:"created_at"`
	UpdatedAt            time.Time `json:"updated_at"`
}

// Service manages journals
type Service struct {
	db    *sql.DB
	clock clockwork.Clock
}

// NewService creates a journal service
func NewService(db *sql.DB, clock clockwork.Clock) *Service {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{db: db, clock: clock}
}

const journalColumns = `j.id, j.tenant_id, j.name, j.description, j.active, j.accepting_submissions, j.created_by, j.created_at, j.updated_at`

// Create adds a journal to the actor's tenant. The actor must be an admin
// or editor with a tenant.
func (s *Service) Create(ctx context.Context, actor *auth.User, name, description string) (*Journal, error) {
	const op = "create_journal"
	if !rbac.IsStaff(actor) || actor.TenantID == nil {
		return nil, errs.Denied(op)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid(op, "name")
	}

	now := s.clock.Now().UTC()
	creator := actor.ID
	j := &Journal{
		TenantID:             *actor.TenantID,
		Name:                 name,
		Description:          strings.TrimSpace(description),
		Active:               true,
		AcceptingSubmissions: true,
		CreatedBy:            &creator,
		CreatedAt:            now,
		UpdatedAt:            now,
	}

	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := tenants.NewQuotas(tx).CheckJournalQuota(ctx, j.TenantID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO journals (tenant_id, name, description, active, accepting_submissions, created_by, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING id
		`, j.TenantID, j.Name, j.Description, j.Active, j.AcceptingSubmissions, creator, now, now).Scan(&j.ID)
		if err != nil {
			return fmt.Errorf("failed to create journal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

// Get returns a journal visible to actor. Journals of other tenants are
// reported as not found.
func (s *Service) Get(ctx context.Context, actor *auth.User, id int64) (*Journal, error) {
	j, err := Load(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !visibility.For(actor).AllowsJournal(j.TenantID, j.Active) {
		return nil, errs.NotFoundf("get_journal", "journal")
	}
	return j, nil
}

// List returns the journals visible to actor, optionally only those
// accepting submissions.
func (s *Service) List(ctx context.Context, actor *auth.User, onlyAccepting bool) ([]*Journal, error) {
	var a database.Args
	query := `SELECT ` + journalColumns + ` FROM journals j WHERE ` + visibility.For(actor).Journals(&a)
	if onlyAccepting {
		query += " AND j.accepting_submissions = " + a.Add(true)
	}
	query += " ORDER BY j.name"
	return s.query(ctx, query, a.Values()...)
}

// Search matches name or description case-insensitively among visible
// journals.
func (s *Service) Search(ctx context.Context, actor *auth.User, q string) ([]*Journal, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []*Journal{}, nil
	}
	var a database.Args
	pattern := a.Add(database.ContainsPattern(strings.ToLower(q))) + database.LikeEscape
	query := `SELECT ` + journalColumns + ` FROM journals j
		WHERE (LOWER(j.name) LIKE ` + pattern + ` OR LOWER(j.description) LIKE ` + pattern + `)
		AND ` + visibility.For(actor).Journals(&a) + `
		ORDER BY j.name`
	return s.query(ctx, query, a.Values()...)
}

// Update renames a journal or changes its description.
func (s *Service) Update(ctx context.Context, actor *auth.User, id int64, name, description string) (*Journal, error) {
	const op = "update_journal"
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errs.Invalid(op, "name")
	}
	return s.mutate(ctx, op, actor, id, func(j *Journal) (string, []any) {
		j.Name = name
		j.Description = strings.TrimSpace(description)
		return `name = $1, description = $2`, []any{j.Name, j.Description}
	})
}

// SetAccepting toggles submission intake. Existing submissions are not
// affected.
func (s *Service) SetAccepting(ctx context.Context, actor *auth.User, id int64, accepting bool) (*Journal, error) {
	return s.mutate(ctx, "set_accepting", actor, id, func(j *Journal) (string, []any) {
		j.AcceptingSubmissions = accepting
		return `accepting_submissions = $1`, []any{accepting}
	})
}

// SetActive soft-enables or soft-disables a journal.
func (s *Service) SetActive(ctx context.Context, actor *auth.User, id int64, active bool) (*Journal, error) {
	return s.mutate(ctx, "set_journal_active", actor, id, func(j *Journal) (string, []any) {
		j.Active = active
		return `active = $1`, []any{active}
	})
}

// mutate applies a staff-only change to a journal of the actor's tenant.
// apply returns the SET clause numbered from $1 and its arguments.
func (s *Service) mutate(ctx context.Context, op string, actor *auth.User, id int64, apply func(*Journal) (string, []any)) (*Journal, error) {
	if !rbac.IsStaff(actor) {
		return nil, errs.Denied(op)
	}

	var j *Journal
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		j, err = Load(ctx, tx, id)
		if err != nil {
			return err
		}
		if !rbac.SameTenant(actor, j.TenantID) {
			return errs.Denied(op)
		}

		set, args := apply(j)
		j.UpdatedAt = s.clock.Now().UTC()
		n := len(args)
		args = append(args, j.UpdatedAt, id)
		query := fmt.Sprintf(`UPDATE journals SET %s, updated_at = $%d WHERE id = $%d`, set, n+1, n+2)
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update journal: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return j, nil
}

func (s *Service) query(ctx context.Context, query string, args ...any) ([]*Journal, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list journals: %w", err)
	}
	defer rows.Close()

	out := []*Journal{}
	for rows.Next() {
		j, err := scanJournal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan journal: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate journals: %w", err)
	}
	return out, nil
}

// Load reads a journal without any visibility check. It is exported for the
// workflow service, which loads journals inside its own transactions.
func Load(ctx context.Context, q database.Querier, id int64) (*Journal, error) {
	j, err := scanJournal(q.QueryRowContext(ctx, `SELECT `+journalColumns+` FROM journals j WHERE j.id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, errs.NotFoundf("get_journal", "journal")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get journal: %w", err)
	}
	return j, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJournal(row rowScanner) (*Journal, error) {
	var (
		j         Journal
		createdBy sql.NullInt64
	)
	err := row.Scan(&j.ID, &j.TenantID, &j.Name, &j.Description, &j.Active, &j.AcceptingSubmissions, &createdBy, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if createdBy.Valid {
		j.CreatedBy = &createdBy.Int64
	}
	return &j, nil
}
