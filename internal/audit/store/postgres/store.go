// Package postgres provides the durable ledger store backed by PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ecoaudit/internal/audit"
)

// Store persists audit events in the audit_events table. The table is
// append-only: this type exposes no update or delete path.
type Store struct {
	pool *pgxpool.Pool
}

// New constructs a PostgreSQL-backed ledger store.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the ledger table and its secondary indexes. admin_id,
// action, (target_type, target_id) and timestamp are all common filter
// predicates, so each gets an index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS audit_events (
			id          BIGSERIAL PRIMARY KEY,
			admin_id    TEXT,
			action      TEXT        NOT NULL,
			target_type TEXT        NOT NULL,
			target_id   TEXT        NOT NULL,
			target_name TEXT        NOT NULL,
			result      TEXT        NOT NULL,
			details     TEXT        NOT NULL DEFAULT '',
			reason      TEXT        NOT NULL DEFAULT '',
			ip_address  TEXT        NOT NULL DEFAULT '',
			user_agent  TEXT        NOT NULL DEFAULT '',
			timestamp   TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_events_admin_id  ON audit_events (admin_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_action    ON audit_events (action);
		CREATE INDEX IF NOT EXISTS idx_audit_events_target    ON audit_events (target_type, target_id);
		CREATE INDEX IF NOT EXISTS idx_audit_events_timestamp ON audit_events (timestamp DESC, id DESC);
	`
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

// Append inserts one event and scans the generated id back. The insert is a
// single statement, so persistence is atomic per record and the row is
// visible to queries as soon as Append returns.
func (s *Store) Append(ctx context.Context, event *audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	var adminID *string
	if event.AdminID != "" {
		adminID = &event.AdminID
	}

	const query = `
		INSERT INTO audit_events (
			admin_id, action, target_type, target_id, target_name,
			result, details, reason, ip_address, user_agent, timestamp
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id
	`
	err := s.pool.QueryRow(ctx, query,
		adminID,
		string(event.Action),
		event.TargetType,
		event.TargetID,
		event.TargetName,
		string(event.Result),
		event.Details,
		event.Reason,
		event.IPAddress,
		event.UserAgent,
		event.Timestamp,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// Query returns matching events in (timestamp DESC, id DESC) order. Filters
// combine into a dynamic WHERE clause; the cursor becomes a row-value
// comparison so keyset pagination uses the timestamp index.
func (s *Store) Query(ctx context.Context, filter audit.Filter, page audit.Page) ([]audit.Event, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, admin_id, action, target_type, target_id, target_name,
		       result, details, reason, ip_address, user_agent, timestamp
		FROM audit_events
		WHERE 1=1`)

	args := []any{}
	arg := func(value any) string {
		args = append(args, value)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.AdminID != "" {
		sb.WriteString(" AND admin_id = " + arg(filter.AdminID))
	}
	if filter.Action != "" {
		sb.WriteString(" AND action = " + arg(string(filter.Action)))
	}
	if filter.TargetType != "" {
		sb.WriteString(" AND target_type = " + arg(filter.TargetType))
	}
	if filter.TargetID != "" {
		sb.WriteString(" AND target_id = " + arg(filter.TargetID))
	}
	if filter.Result != "" {
		sb.WriteString(" AND result = " + arg(string(filter.Result)))
	}
	if filter.Since != nil {
		sb.WriteString(" AND timestamp >= " + arg(*filter.Since))
	}
	if filter.Until != nil {
		sb.WriteString(" AND timestamp <= " + arg(*filter.Until))
	}
	if c := page.Cursor; c != nil {
		sb.WriteString(fmt.Sprintf(" AND (timestamp, id) < (%s, %s)", arg(c.Timestamp), arg(c.ID)))
	}

	sb.WriteString(" ORDER BY timestamp DESC, id DESC")
	if page.Limit > 0 {
		sb.WriteString(" LIMIT " + arg(page.Limit))
	}

	rows, err := s.pool.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := make([]audit.Event, 0)
	for rows.Next() {
		var (
			e       audit.Event
			adminID *string
			action  string
			result  string
		)
		err := rows.Scan(
			&e.ID, &adminID, &action, &e.TargetType, &e.TargetID, &e.TargetName,
			&result, &e.Details, &e.Reason, &e.IPAddress, &e.UserAgent, &e.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		if adminID != nil {
			e.AdminID = *adminID
		}
		e.Action = audit.Action(action)
		e.Result = audit.Result(result)
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// Health verifies database connectivity.
func (s *Store) Health(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
