// Package sql persists audit events in the registry database. Append joins
// the caller's transaction when one is in context, so an event commits or
// rolls back with the change it describes.
package sql

import (
	"context"
	"fmt"

	"credreg/internal/platform/database"
	id "credreg/pkg/domain"
	audit "credreg/pkg/platform/audit"
)

type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

const selectColumns = `id, category, action, actor, subject, domain, record_id, decision, reason, request_id, occurred_at`

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := s.db.Rebind(`
		INSERT INTO audit_events (` + selectColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := s.db.Conn(ctx).ExecContext(ctx, query,
		event.ID,
		string(event.Category),
		event.Action,
		string(event.Actor),
		string(event.Subject),
		string(event.Domain),
		int64(event.RecordID),
		event.Decision,
		event.Reason,
		event.RequestID,
		s.db.TimeArg(event.Timestamp),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *Store) ListByPrincipal(ctx context.Context, p id.Principal, limit int) ([]audit.Event, error) {
	query := `SELECT ` + selectColumns + ` FROM audit_events
		WHERE actor = ? OR subject = ?
		ORDER BY occurred_at ASC, id ASC`
	args := []any{string(p), string(p)}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := `SELECT ` + selectColumns + ` FROM audit_events ORDER BY occurred_at DESC, id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.query(ctx, query, args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) ([]audit.Event, error) {
	rows, err := s.db.ReadConn(ctx).QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	events := []audit.Event{}
	for rows.Next() {
		var (
			e                                audit.Event
			category, actor, subject, domain string
			recordID                         int64
			occurredAt                       database.Time
		)
		if err := rows.Scan(&e.ID, &category, &e.Action, &actor, &subject, &domain,
			&recordID, &e.Decision, &e.Reason, &e.RequestID, &occurredAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = audit.EventCategory(category)
		e.Actor = id.Principal(actor)
		e.Subject = id.Principal(subject)
		e.Domain = id.Domain(domain)
		e.RecordID = uint64(recordID)
		e.Timestamp = occurredAt.Time
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
