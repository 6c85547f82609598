// Package database opens the SQL backends (Postgres, SQLite), applies the
// embedded migrations, and provides the transaction boundary shared by the SQL stores.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"credreg/pkg/platform/tx"
)

// Dialect selects placeholder style and locking clauses.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// sqliteTimeLayout is fixed-width so TEXT ordering matches time ordering.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// DB holds a writer and a reader pool. For Postgres both point at the same
// pool; for SQLite the writer is capped at one connection so commits are
// serialized.
type DB struct {
	Writer  *sql.DB
	Reader  *sql.DB
	Dialect Dialect

	// driver and dsn let Migrate open its own short-lived connection.
	driver string
	dsn    string
}

// Querier is the subset of *sql.DB and *sql.Tx used by stores.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Close closes both pools. Returns the first error encountered.
func (db *DB) Close() error {
	var firstErr error
	if db.Reader != nil && db.Reader != db.Writer {
		if err := db.Reader.Close(); err != nil {
			firstErr = fmt.Errorf("close reader: %w", err)
		}
	}
	if err := db.Writer.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close writer: %w", err)
	}
	return firstErr
}

// Ping checks the writer connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.Writer.PingContext(ctx)
}

// Health satisfies the health registry's checker.
func (db *DB) Health(ctx context.Context) error {
	return db.Ping(ctx)
}

// RunInTx runs fn inside a transaction carried in ctx. A ctx that already
// carries a transaction joins it. tx.AfterCommit callbacks run once the
// commit succeeds.
func (db *DB) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if tx.Active(ctx) {
		return fn(ctx)
	}
	sqlTx, err := db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()
	ctx, flush := tx.WithCommitHooks(tx.WithTx(ctx, sqlTx))
	if err := fn(ctx); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	flush()
	return nil
}

// Conn returns the transaction in ctx or the writer pool.
func (db *DB) Conn(ctx context.Context) Querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return db.Writer
}

// ReadConn returns the transaction in ctx or the reader pool.
func (db *DB) ReadConn(ctx context.Context) Querier {
	if sqlTx, ok := tx.From(ctx); ok {
		return sqlTx
	}
	return db.Reader
}

// Rebind rewrites '?' placeholders into the dialect's form.
func (db *DB) Rebind(query string) string {
	if db.Dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

// ForUpdate returns the row-locking suffix for SELECTs inside a transaction.
// SQLite has a single writer so the clause is unnecessary there.
func (db *DB) ForUpdate() string {
	if db.Dialect == Postgres {
		return " FOR UPDATE"
	}
	return ""
}

// ForShare is the shared-lock suffix for reads a transaction depends on.
// A concurrent FOR UPDATE on the row waits until the reader commits.
func (db *DB) ForShare() string {
	if db.Dialect == Postgres {
		return " FOR SHARE"
	}
	return ""
}

// TimeArg converts t into the dialect's column representation.
func (db *DB) TimeArg(t time.Time) any {
	if db.Dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

// NullTimeArg is TimeArg for optional timestamps.
func (db *DB) NullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return db.TimeArg(*t)
}

// Time scans a timestamp stored natively (Postgres) or as text (SQLite).
type Time struct {
	time.Time
	Valid bool
}

func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	default:
		return fmt.Errorf("database: cannot scan %T into Time", src)
	}
}

func (t *Time) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("database: parse time %q: %w", s, err)
	}
	t.Time, t.Valid = parsed.UTC(), true
	return nil
}

// Ptr returns nil for a NULL column.
func (t Time) Ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
