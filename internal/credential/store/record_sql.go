package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"credreg/internal/credential/models"
	"credreg/internal/platform/database"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/sentinel"
)

// SQLRecordStore persists records in credential_records. The per-domain
// counter lives in record_counters and pending_verifications is the pending
// index; both are written in the same transaction as the record.
type SQLRecordStore struct {
	db *database.DB
}

func NewSQLRecordStore(db *database.DB) *SQLRecordStore {
	return &SQLRecordStore{db: db}
}

const recordColumns = `domain, id, subject, issuer, payload, document_ref, state, rejection_reason, created_at, updated_at, verified_at`

var qualifiedRecordColumns = "r." + strings.ReplaceAll(recordColumns, ", ", ", r.")

// Create returns the row as the database stored it, so JSONB key order and
// timestamp precision match later reads.
func (s *SQLRecordStore) Create(ctx context.Context, r *models.Record) (*models.Record, error) {
	stored := r.Clone()
	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		var next int64
		err := s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(
			`UPDATE record_counters SET last_id = last_id + 1 WHERE domain = ? RETURNING last_id`),
			string(r.Domain)).Scan(&next)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("domain %q: %w", r.Domain, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("allocate record id: %w", err)
		}
		row := s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(`
			INSERT INTO credential_records (`+recordColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING `+recordColumns),
			string(stored.Domain), next, string(stored.Subject), string(stored.Issuer), string(stored.Payload),
			stored.DocumentRef, string(stored.State), stored.RejectionReason,
			s.db.TimeArg(stored.CreatedAt), s.db.TimeArg(stored.UpdatedAt), s.db.NullTimeArg(stored.VerifiedAt))
		if stored, err = scanRecord(row); err != nil {
			return fmt.Errorf("insert record: %w", err)
		}
		return s.syncPending(ctx, stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (s *SQLRecordStore) FindByID(ctx context.Context, d id.Domain, rid uint64) (*models.Record, error) {
	row := s.db.ReadConn(ctx).QueryRowContext(ctx, s.db.Rebind(
		`SELECT `+recordColumns+` FROM credential_records WHERE domain = ? AND id = ?`),
		string(d), int64(rid))
	r, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s/%d: %w", d, rid, sentinel.ErrNotFound)
	}
	return r, err
}

func (s *SQLRecordStore) ListBySubject(ctx context.Context, d id.Domain, subject id.Principal) ([]*models.Record, error) {
	return s.list(ctx, `SELECT `+recordColumns+` FROM credential_records
		WHERE domain = ? AND subject = ? ORDER BY id`, string(d), string(subject))
}

func (s *SQLRecordStore) ListPendingByIssuer(ctx context.Context, d id.Domain, issuer id.Principal) ([]*models.Record, error) {
	return s.list(ctx, `SELECT `+qualifiedRecordColumns+`
		FROM pending_verifications p
		JOIN credential_records r ON r.domain = p.domain AND r.id = p.record_id
		WHERE p.domain = ? AND p.issuer = ? ORDER BY p.record_id`, string(d), string(issuer))
}

func (s *SQLRecordStore) ListByDomain(ctx context.Context, d id.Domain) ([]*models.Record, error) {
	return s.list(ctx, `SELECT `+recordColumns+` FROM credential_records WHERE domain = ? ORDER BY id`, string(d))
}

func (s *SQLRecordStore) CountByDomain(ctx context.Context, d id.Domain) (int, error) {
	var n int
	err := s.db.ReadConn(ctx).QueryRowContext(ctx, s.db.Rebind(
		`SELECT COUNT(*) FROM credential_records WHERE domain = ?`), string(d)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// Execute locks the record, validates, mutates, writes it back and syncs the
// pending index inside one transaction.
func (s *SQLRecordStore) Execute(ctx context.Context, d id.Domain, rid uint64, validate func(*models.Record) error, mutate func(*models.Record)) (*models.Record, error) {
	var out *models.Record
	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		row := s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(
			`SELECT `+recordColumns+` FROM credential_records WHERE domain = ? AND id = ?`+s.db.ForUpdate()),
			string(d), int64(rid))
		r, err := scanRecord(row)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("record %s/%d: %w", d, rid, sentinel.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)
		row = s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(`
			UPDATE credential_records SET state = ?, rejection_reason = ?, updated_at = ?, verified_at = ?
			WHERE domain = ? AND id = ?
			RETURNING `+recordColumns),
			string(r.State), r.RejectionReason, s.db.TimeArg(r.UpdatedAt), s.db.NullTimeArg(r.VerifiedAt),
			string(d), int64(rid))
		if r, err = scanRecord(row); err != nil {
			return fmt.Errorf("update record: %w", err)
		}
		if err := s.syncPending(ctx, r); err != nil {
			return err
		}
		out = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// syncPending makes the pending_verifications row exist iff r is pending.
func (s *SQLRecordStore) syncPending(ctx context.Context, r *models.Record) error {
	_, err := s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(
		`DELETE FROM pending_verifications WHERE domain = ? AND record_id = ?`),
		string(r.Domain), int64(r.ID))
	if err != nil {
		return fmt.Errorf("clear pending index: %w", err)
	}
	if !r.IsPending() {
		return nil
	}
	_, err = s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(`
		INSERT INTO pending_verifications (domain, record_id, issuer, requested_at)
		VALUES (?, ?, ?, ?)`),
		string(r.Domain), int64(r.ID), string(r.Issuer), s.db.TimeArg(r.UpdatedAt))
	if err != nil {
		return fmt.Errorf("add pending index: %w", err)
	}
	return nil
}

func (s *SQLRecordStore) list(ctx context.Context, query string, args ...any) ([]*models.Record, error) {
	rows, err := s.db.ReadConn(ctx).QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()
	out := []*models.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return out, nil
}

func scanRecord(row scanner) (*models.Record, error) {
	var (
		r                                models.Record
		domain, subject, issuer, state   string
		rid                              int64
		payload                          []byte
		createdAt, updatedAt, verifiedAt database.Time
	)
	err := row.Scan(&domain, &rid, &subject, &issuer, &payload, &r.DocumentRef, &state,
		&r.RejectionReason, &createdAt, &updatedAt, &verifiedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan record: %w", err)
	}
	r.ID = uint64(rid)
	r.Domain = id.Domain(domain)
	r.Subject = id.Principal(subject)
	r.Issuer = id.Principal(issuer)
	r.Payload = payload
	r.State = models.State(state)
	r.CreatedAt = createdAt.Time
	r.UpdatedAt = updatedAt.Time
	r.VerifiedAt = verifiedAt.Ptr()
	return &r, nil
}
