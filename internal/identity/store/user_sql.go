package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"credreg/internal/identity/models"
	"credreg/internal/platform/database"
	id "credreg/pkg/domain"
	"credreg/pkg/platform/sentinel"
	"credreg/pkg/platform/tx"
)

// SQLUserStore persists profiles in the users table.
type SQLUserStore struct {
	db *database.DB
}

func NewSQLUserStore(db *database.DB) *SQLUserStore {
	return &SQLUserStore{db: db}
}

const userColumns = `principal, role, display_name, organization_name, email, title, bio, active, registered_at, updated_at`

func (s *SQLUserStore) Create(ctx context.Context, u *models.User) error {
	query := s.db.Rebind(`
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (principal) DO NOTHING`)
	res, err := s.db.Conn(ctx).ExecContext(ctx, query,
		string(u.Principal), string(u.Role), u.DisplayName, u.OrganizationName, u.Email,
		u.Title, u.Bio, u.Active, s.db.TimeArg(u.RegisteredAt), s.db.TimeArg(u.UpdatedAt))
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert user rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", u.Principal, sentinel.ErrAlreadyUsed)
	}
	return nil
}

// FindByPrincipal share-locks the row when called inside a transaction, so
// the active flag it returns holds until that transaction ends.
func (s *SQLUserStore) FindByPrincipal(ctx context.Context, p id.Principal) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE principal = ?`
	if tx.Active(ctx) {
		query += s.db.ForShare()
	}
	row := s.db.ReadConn(ctx).QueryRowContext(ctx, s.db.Rebind(query), string(p))
	return scanUser(row, p)
}

func (s *SQLUserStore) ListByRole(ctx context.Context, role id.Role) ([]id.Principal, error) {
	return s.listPrincipals(ctx,
		`SELECT principal FROM users WHERE role = ? ORDER BY registered_at, principal`, string(role))
}

func (s *SQLUserStore) ListAll(ctx context.Context) ([]id.Principal, error) {
	return s.listPrincipals(ctx, `SELECT principal FROM users ORDER BY registered_at, principal`)
}

func (s *SQLUserStore) CountByRole(ctx context.Context) (RoleCounts, error) {
	rows, err := s.db.ReadConn(ctx).QueryContext(ctx, `SELECT role, COUNT(*) FROM users GROUP BY role`)
	if err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}
	defer rows.Close()
	counts := RoleCounts{}
	for rows.Next() {
		var (
			role string
			n    int
		)
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan user count: %w", err)
		}
		counts[id.Role(role)] = n
	}
	return counts, rows.Err()
}

// Execute locks the row (FOR UPDATE on Postgres), validates, mutates and
// writes back inside one transaction.
func (s *SQLUserStore) Execute(ctx context.Context, p id.Principal, validate func(*models.User) error, mutate func(*models.User)) (*models.User, error) {
	var out *models.User
	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		row := s.db.Conn(ctx).QueryRowContext(ctx,
			s.db.Rebind(`SELECT `+userColumns+` FROM users WHERE principal = ?`+s.db.ForUpdate()), string(p))
		u, err := scanUser(row, p)
		if err != nil {
			return err
		}
		if err := validate(u); err != nil {
			return err
		}
		mutate(u)
		_, err = s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(`
			UPDATE users SET display_name = ?, organization_name = ?, email = ?, title = ?, bio = ?,
				active = ?, updated_at = ?
			WHERE principal = ?`),
			u.DisplayName, u.OrganizationName, u.Email, u.Title, u.Bio,
			u.Active, s.db.TimeArg(u.UpdatedAt), string(p))
		if err != nil {
			return fmt.Errorf("update user: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GrantViewer reports whether the grant is new. The owner must exist.
func (s *SQLUserStore) GrantViewer(ctx context.Context, owner, viewer id.Principal, at time.Time) (bool, error) {
	var granted bool
	err := s.db.RunInTx(ctx, func(ctx context.Context) error {
		var exists int
		err := s.db.Conn(ctx).QueryRowContext(ctx, s.db.Rebind(
			`SELECT 1 FROM users WHERE principal = ?`+s.db.ForShare()), string(owner)).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("user %s: %w", owner, sentinel.ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("load viewer owner: %w", err)
		}
		res, err := s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(`
			INSERT INTO profile_viewers (owner, viewer, granted_at) VALUES (?, ?, ?)
			ON CONFLICT (owner, viewer) DO NOTHING`),
			string(owner), string(viewer), s.db.TimeArg(at))
		if err != nil {
			return fmt.Errorf("insert viewer: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("insert viewer rows affected: %w", err)
		}
		granted = n > 0
		return nil
	})
	return granted, err
}

// RevokeViewer reports whether a grant was removed.
func (s *SQLUserStore) RevokeViewer(ctx context.Context, owner, viewer id.Principal) (bool, error) {
	res, err := s.db.Conn(ctx).ExecContext(ctx, s.db.Rebind(
		`DELETE FROM profile_viewers WHERE owner = ? AND viewer = ?`), string(owner), string(viewer))
	if err != nil {
		return false, fmt.Errorf("delete viewer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete viewer rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *SQLUserStore) IsViewer(ctx context.Context, owner, viewer id.Principal) (bool, error) {
	var n int
	err := s.db.ReadConn(ctx).QueryRowContext(ctx, s.db.Rebind(
		`SELECT COUNT(*) FROM profile_viewers WHERE owner = ? AND viewer = ?`),
		string(owner), string(viewer)).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check viewer: %w", err)
	}
	return n > 0, nil
}

func (s *SQLUserStore) ListViewers(ctx context.Context, owner id.Principal) ([]id.Principal, error) {
	return s.listPrincipals(ctx,
		`SELECT viewer FROM profile_viewers WHERE owner = ? ORDER BY granted_at, viewer`, string(owner))
}

func (s *SQLUserStore) listPrincipals(ctx context.Context, query string, args ...any) ([]id.Principal, error) {
	rows, err := s.db.ReadConn(ctx).QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	out := []id.Principal{}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan principal: %w", err)
		}
		out = append(out, id.Principal(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return out, nil
}

func scanUser(row *sql.Row, p id.Principal) (*models.User, error) {
	var (
		u                       models.User
		principal, role         string
		registeredAt, updatedAt database.Time
	)
	err := row.Scan(&principal, &role, &u.DisplayName, &u.OrganizationName, &u.Email,
		&u.Title, &u.Bio, &u.Active, &registeredAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", p, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	u.Principal = id.Principal(principal)
	u.Role = id.Role(role)
	u.RegisteredAt = registeredAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}
