package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"credreg/internal/credential/models"
	"credreg/internal/platform/database"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/sentinel"
)

// SQLIssuerStore persists registrations in issuer_registrations.
type SQLIssuerStore struct {
	db *database.DB
}

func NewSQLIssuerStore(db *database.DB) *SQLIssuerStore {
	return &SQLIssuerStore{db: db}
}

const issuerColumns = `domain, principal, org_name, org_metadata, registration_ref, registered_at`

func (s *SQLIssuerStore) Create(ctx context.Context, reg *models.IssuerRegistration) error {
	meta, err := json.Marshal(reg.OrgMetadata)
	if err != nil {
		return fmt.Errorf("encode issuer metadata: %w", err)
	}
	res, err := s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(`
		INSERT INTO issuer_registrations (`+issuerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (domain, principal) DO NOTHING`),
		string(reg.Domain), string(reg.Principal), reg.OrgName, string(meta), reg.RegistrationRef,
		s.db.TimeArg(reg.RegisteredAt))
	if err != nil {
		return fmt.Errorf("insert issuer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert issuer rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("issuer %s/%s: %w", reg.Domain, reg.Principal, sentinel.ErrAlreadyUsed)
	}
	return nil
}

func (s *SQLIssuerStore) Find(ctx context.Context, d id.Domain, p id.Principal) (*models.IssuerRegistration, error) {
	row := s.db.ReadConn(ctx).QueryRowContext(ctx, s.db.Rebind(
		`SELECT `+issuerColumns+` FROM issuer_registrations WHERE domain = ? AND principal = ?`),
		string(d), string(p))
	reg, err := scanIssuer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issuer %s/%s: %w", d, p, sentinel.ErrNotFound)
	}
	return reg, err
}

func (s *SQLIssuerStore) Exists(ctx context.Context, d id.Domain, p id.Principal) (bool, error) {
	var n int
	err := s.db.ReadConn(ctx).QueryRowContext(ctx, s.db.Rebind(
		`SELECT COUNT(*) FROM issuer_registrations WHERE domain = ? AND principal = ?`),
		string(d), string(p)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check issuer: %w", err)
	}
	return n > 0, nil
}

func (s *SQLIssuerStore) List(ctx context.Context, d id.Domain) ([]*models.IssuerRegistration, error) {
	rows, err := s.db.ReadConn(ctx).QueryContext(ctx, s.db.Rebind(
		`SELECT `+issuerColumns+` FROM issuer_registrations WHERE domain = ? ORDER BY registered_at, principal`),
		string(d))
	if err != nil {
		return nil, fmt.Errorf("list issuers: %w", err)
	}
	defer rows.Close()
	out := []*models.IssuerRegistration{}
	for rows.Next() {
		reg, err := scanIssuer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate issuers: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIssuer(row scanner) (*models.IssuerRegistration, error) {
	var (
		reg               models.IssuerRegistration
		domain, principal string
		meta              []byte
		registeredAt      database.Time
	)
	err := row.Scan(&domain, &principal, &reg.OrgName, &meta, &reg.RegistrationRef, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan issuer: %w", err)
	}
	if err := json.Unmarshal(meta, &reg.OrgMetadata); err != nil {
		return nil, fmt.Errorf("decode issuer metadata: %w", err)
	}
	reg.Domain = id.Domain(domain)
	reg.Principal = id.Principal(principal)
	reg.RegisteredAt = registeredAt.Time
	return &reg, nil
}
