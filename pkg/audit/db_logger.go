package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DBLogger implements audit logging to the audit_logs table
type DBLogger struct {
	db     *sql.DB
	reader func() *sql.DB
}

// NewDBLogger creates a new database-based audit logger. The table is
// created by the schema migrations.
func NewDBLogger(db *sql.DB) (*DBLogger, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &DBLogger{db: db}, nil
}

// WithReader routes Search to the connection returned by reader, typically
// a read replica. Writes and Cleanup stay on the primary.
func (l *DBLogger) WithReader(reader func() *sql.DB) *DBLogger {
	l.reader = reader
	return l
}

func (l *DBLogger) readDB() *sql.DB {
	if l.reader != nil {
		if db := l.reader(); db != nil {
			return db
		}
	}
	return l.db
}

// Log logs an audit event to the database
func (l *DBLogger) Log(ctx context.Context, event *Event) error {
	metadataJSON := []byte("{}")
	if len(event.Metadata) > 0 {
		var err error
		metadataJSON, err = json.Marshal(event.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	err := l.db.QueryRowContext(ctx, `
		INSERT INTO audit_logs (
			event_id, timestamp, event_type, status,
			user_id, tenant_id,
			resource_type, resource_id,
			ip_address, request_id,
			message, metadata
		) VALUES (
			$1, $2, $3, $4,
			$5, $6,
			$7, $8,
			$9, $10,
			$11, $12
		) RETURNING id
	`,
		event.EventID, event.Timestamp.UTC(), string(event.EventType), string(event.Status),
		event.UserID, event.TenantID,
		string(event.ResourceType), event.ResourceID,
		event.IPAddress, event.RequestID,
		event.Message, string(metadataJSON),
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert audit log: %w", err)
	}

	return nil
}

// Search searches audit logs based on filters, newest first.
func (l *DBLogger) Search(ctx context.Context, filter SearchFilter) ([]*Event, error) {
	query := `
		SELECT
			id, event_id, timestamp, event_type, status,
			user_id, tenant_id,
			resource_type, resource_id,
			ip_address, request_id,
			message, metadata
		FROM audit_logs
		WHERE 1=1
	`

	args := []interface{}{}
	argCount := 1

	if filter.StartTime != nil {
		query += fmt.Sprintf(" AND timestamp >= $%d", argCount)
		args = append(args, filter.StartTime.UTC())
		argCount++
	}

	if filter.EndTime != nil {
		query += fmt.Sprintf(" AND timestamp <= $%d", argCount)
		args = append(args, filter.EndTime.UTC())
		argCount++
	}

	if filter.UserID != nil {
		query += fmt.Sprintf(" AND user_id = $%d", argCount)
		args = append(args, *filter.UserID)
		argCount++
	}

	if filter.TenantID != nil {
		query += fmt.Sprintf(" AND tenant_id = $%d", argCount)
		args = append(args, *filter.TenantID)
		argCount++
	}

	if len(filter.EventTypes) > 0 {
		placeholders := make([]string, len(filter.EventTypes))
		for i, et := range filter.EventTypes {
			placeholders[i] = fmt.Sprintf("$%d", argCount)
			args = append(args, string(et))
			argCount++
		}
		query += " AND event_type IN (" + strings.Join(placeholders, ", ") + ")"
	}

	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argCount)
		args = append(args, string(*filter.Status))
		argCount++
	}

	if filter.ResourceType != "" {
		query += fmt.Sprintf(" AND resource_type = $%d", argCount)
		args = append(args, string(filter.ResourceType))
		argCount++
	}

	if filter.ResourceID != "" {
		query += fmt.Sprintf(" AND resource_id = $%d", argCount)
		args = append(args, filter.ResourceID)
		argCount++
	}

	query += " ORDER BY timestamp DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, filter.Offset)

	rows, err := l.readDB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search audit logs: %w", err)
	}
	defer rows.Close()

	events := []*Event{}
	for rows.Next() {
		var (
			event        Event
			eventType    string
			status       string
			resourceType string
			userID       sql.NullInt64
			tenantID     sql.NullInt64
			metadataJSON string
		)
		err := rows.Scan(
			&event.ID, &event.EventID, &event.Timestamp, &eventType, &status,
			&userID, &tenantID,
			&resourceType, &event.ResourceID,
			&event.IPAddress, &event.RequestID,
			&event.Message, &metadataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit log: %w", err)
		}
		event.EventType = EventType(eventType)
		event.Status = EventStatus(status)
		event.ResourceType = ResourceType(resourceType)
		if userID.Valid {
			event.UserID = &userID.Int64
		}
		if tenantID.Valid {
			event.TenantID = &tenantID.Int64
		}
		if metadataJSON != "" && metadataJSON != "{}" {
			if err := json.Unmarshal([]byte(metadataJSON), &event.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
			}
		}
		events = append(events, &event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate audit logs: %w", err)
	}

	return events, nil
}

// Cleanup removes audit logs older than cutoff.
func (l *DBLogger) Cleanup(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM audit_logs WHERE timestamp < $1`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clean up audit logs: %w", err)
	}
	return res.RowsAffected()
}

// Close is a no-op; the database handle is owned by the caller.
func (l *DBLogger) Close() error {
	return nil
}
