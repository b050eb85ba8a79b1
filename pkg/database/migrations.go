package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Dialect selects dialect-specific DDL fragments.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// primary key placeholder expanded per dialect
const pkPlaceholder = "{{pk}}"

func (d Dialect) expand(ddl string) string {
	pk := "BIGSERIAL PRIMARY KEY"
	if d == SQLite {
		pk = "INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	return strings.ReplaceAll(ddl, pkPlaceholder, pk)
}

// GetMigrations returns all schema migrations in order.
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create tenants and users",
			SQL: `
				CREATE TABLE IF NOT EXISTS tenants (
					id {{pk}},
					name TEXT NOT NULL,
					subdomain TEXT NOT NULL UNIQUE,
					active BOOLEAN NOT NULL DEFAULT TRUE,
					max_users INTEGER NOT NULL DEFAULT 5,
					max_journals INTEGER NOT NULL DEFAULT 3,
					max_storage_gb INTEGER NOT NULL DEFAULT 10,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS users (
					id {{pk}},
					tenant_id BIGINT REFERENCES tenants(id),
					email TEXT NOT NULL UNIQUE,
					name TEXT NOT NULL DEFAULT '',
					password_hash TEXT NOT NULL DEFAULT '',
					active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					last_login_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_users_tenant_id ON users(tenant_id);
			`,
		},
		{
			Version:     2,
			Description: "Create roles and user_roles",
			SQL: `
				CREATE TABLE IF NOT EXISTS roles (
					id {{pk}},
					name TEXT NOT NULL UNIQUE,
					description TEXT NOT NULL DEFAULT '',
					permissions TEXT NOT NULL DEFAULT '{}',
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS user_roles (
					user_id BIGINT NOT NULL REFERENCES users(id),
					role_id BIGINT NOT NULL REFERENCES roles(id),
					granted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					PRIMARY KEY (user_id, role_id)
				);

				CREATE INDEX IF NOT EXISTS idx_user_roles_role_id ON user_roles(role_id);
			`,
		},
		{
			Version:     3,
			Description: "Seed built-in roles",
			SQL: `
				INSERT INTO roles (name, description, permissions) VALUES
					('admin', 'Tenant administrator', '{"manage_users":true,"manage_journals":true,"manage_submissions":true,"manage_subscriptions":true,"view_analytics":true}'),
					('editor', 'Journal editor', '{"manage_journals":true,"manage_submissions":true,"assign_reviewers":true,"make_decisions":true}'),
					('reviewer', 'Peer reviewer', '{"view_submissions":true,"submit_reviews":true}'),
					('author', 'Manuscript author', '{"create_submissions":true,"view_own_submissions":true,"create_blog_posts":true}'),
					('user', 'Registered reader', '{"view_journals":true,"view_blog_posts":true}');
			`,
		},
		{
			Version:     4,
			Description: "Create journals, submissions and reviews",
			SQL: `
				CREATE TABLE IF NOT EXISTS journals (
					id {{pk}},
					tenant_id BIGINT NOT NULL REFERENCES tenants(id),
					name TEXT NOT NULL,
					description TEXT NOT NULL DEFAULT '',
					active BOOLEAN NOT NULL DEFAULT TRUE,
					accepting_submissions BOOLEAN NOT NULL DEFAULT TRUE,
					created_by BIGINT REFERENCES users(id),
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_journals_tenant_id ON journals(tenant_id);

				CREATE TABLE IF NOT EXISTS submissions (
					id {{pk}},
					journal_id BIGINT NOT NULL REFERENCES journals(id),
					author_id BIGINT NOT NULL REFERENCES users(id),
					title TEXT NOT NULL,
					abstract TEXT NOT NULL,
					manuscript_ref TEXT NOT NULL DEFAULT '',
					manuscript_size BIGINT NOT NULL DEFAULT 0,
					status TEXT NOT NULL DEFAULT 'submitted',
					submitted_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_submissions_journal_id ON submissions(journal_id);
				CREATE INDEX IF NOT EXISTS idx_submissions_author_id ON submissions(author_id);
				CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);

				CREATE TABLE IF NOT EXISTS reviews (
					id {{pk}},
					submission_id BIGINT NOT NULL REFERENCES submissions(id),
					reviewer_id BIGINT NOT NULL REFERENCES users(id),
					status TEXT NOT NULL DEFAULT 'pending',
					rating INTEGER,
					recommendation TEXT,
					comments TEXT,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					completed_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_reviews_submission_id ON reviews(submission_id);
				CREATE INDEX IF NOT EXISTS idx_reviews_reviewer_id ON reviews(reviewer_id);

				CREATE TABLE IF NOT EXISTS submission_status_history (
					id {{pk}},
					submission_id BIGINT NOT NULL REFERENCES submissions(id),
					from_status TEXT,
					to_status TEXT NOT NULL,
					changed_by BIGINT REFERENCES users(id),
					reason TEXT NOT NULL DEFAULT '',
					changed_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_status_history_submission_id ON submission_status_history(submission_id);
			`,
		},
		{
			Version:     5,
			Description: "Create api_tokens",
			SQL: `
				CREATE TABLE IF NOT EXISTS api_tokens (
					id {{pk}},
					user_id BIGINT NOT NULL REFERENCES users(id),
					token_hash TEXT NOT NULL UNIQUE,
					token_prefix TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					expires_at TIMESTAMP,
					last_used_at TIMESTAMP,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					revoked_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_api_tokens_user_id ON api_tokens(user_id);
			`,
		},
		{
			Version:     6,
			Description: "Create blog and assistant tables",
			SQL: `
				CREATE TABLE IF NOT EXISTS blog_posts (
					id {{pk}},
					tenant_id BIGINT REFERENCES tenants(id),
					author_id BIGINT NOT NULL REFERENCES users(id),
					title TEXT NOT NULL,
					content TEXT NOT NULL,
					excerpt TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL DEFAULT 'draft',
					views_count INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					published_at TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_blog_posts_author_id ON blog_posts(author_id);

				CREATE TABLE IF NOT EXISTS ai_conversations (
					id {{pk}},
					user_id BIGINT NOT NULL REFERENCES users(id),
					title TEXT NOT NULL DEFAULT 'New Conversation',
					active BOOLEAN NOT NULL DEFAULT TRUE,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
					updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE TABLE IF NOT EXISTS ai_messages (
					id {{pk}},
					conversation_id BIGINT NOT NULL REFERENCES ai_conversations(id),
					role TEXT NOT NULL,
					content TEXT NOT NULL,
					created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_ai_messages_conversation_id ON ai_messages(conversation_id);
			`,
		},
		{
			Version:     7,
			Description: "Create audit_logs",
			SQL: `
				CREATE TABLE IF NOT EXISTS audit_logs (
					id {{pk}},
					event_id TEXT NOT NULL,
					timestamp TIMESTAMP NOT NULL,
					event_type TEXT NOT NULL,
					status TEXT NOT NULL,
					user_id BIGINT,
					tenant_id BIGINT,
					resource_type TEXT NOT NULL DEFAULT '',
					resource_id TEXT NOT NULL DEFAULT '',
					ip_address TEXT NOT NULL DEFAULT '',
					request_id TEXT NOT NULL DEFAULT '',
					message TEXT NOT NULL DEFAULT '',
					metadata TEXT NOT NULL DEFAULT '{}'
				);

				CREATE INDEX IF NOT EXISTS idx_audit_logs_tenant_id ON audit_logs(tenant_id);
				CREATE INDEX IF NOT EXISTS idx_audit_logs_event_type ON audit_logs(event_type);
			`,
		},
	}
}

// RunMigrations executes all pending migrations, each in its own transaction.
func RunMigrations(ctx context.Context, db *sql.DB, dialect Dialect, logger logrus.FieldLogger) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations ORDER BY version")
	if err != nil {
		return fmt.Errorf("failed to query migrations: %w", err)
	}

	applied := make(map[int]bool)
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	rows.Close()

	for _, migration := range GetMigrations() {
		if applied[migration.Version] {
			continue
		}

		logger.WithField("version", migration.Version).Infof("Running migration: %s", migration.Description)

		err := WithTx(ctx, db, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, dialect.expand(migration.SQL)); err != nil {
				return fmt.Errorf("failed to execute migration %d: %w", migration.Version, err)
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
				migration.Version, migration.Description,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}

	return nil
}
