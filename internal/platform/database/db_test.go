package database

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credreg/pkg/platform/tx"
)

func TestRebind(t *testing.T) {
	pg := &DB{Dialect: Postgres}
	lite := &DB{Dialect: SQLite}

	q := "SELECT * FROM users WHERE role = ? AND active = ? LIMIT ?"
	assert.Equal(t, "SELECT * FROM users WHERE role = $1 AND active = $2 LIMIT $3", pg.Rebind(q))
	assert.Equal(t, q, lite.Rebind(q))
	assert.Equal(t, " FOR UPDATE", pg.ForUpdate())
	assert.Empty(t, lite.ForUpdate())
	assert.Equal(t, " FOR SHARE", pg.ForShare())
	assert.Empty(t, lite.ForShare())
}

func TestTimeScan(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 6000, time.UTC)
	lite := &DB{Dialect: SQLite}

	var fromText Time
	require.NoError(t, fromText.Scan(lite.TimeArg(ts)))
	assert.True(t, fromText.Valid)
	assert.True(t, ts.Equal(fromText.Time))

	var fromNative Time
	require.NoError(t, fromNative.Scan(ts))
	assert.True(t, ts.Equal(fromNative.Time))

	var null Time
	require.NoError(t, null.Scan(nil))
	assert.Nil(t, null.Ptr())

	assert.Error(t, new(Time).Scan(42))
}

func TestSQLiteTimeOrdering(t *testing.T) {
	lite := &DB{Dialect: SQLite}
	earlier := lite.TimeArg(time.Date(2024, 1, 1, 0, 0, 0, 500_000_000, time.UTC)).(string)
	later := lite.TimeArg(time.Date(2024, 1, 1, 0, 0, 0, 510_000_000, time.UTC)).(string)
	assert.Less(t, earlier, later)
	assert.Len(t, later, len(earlier))
}

func openTestSQLite(t *testing.T) *DB {
	t.Helper()
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "credreg.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func TestSQLiteMigrateAndTx(t *testing.T) {
	db := openTestSQLite(t)
	ctx := context.Background()

	t.Run("migrations are idempotent", func(t *testing.T) {
		require.NoError(t, Migrate(db))
	})

	t.Run("migrate holds no pool connection", func(t *testing.T) {
		require.NoError(t, Migrate(db))
		assert.Zero(t, db.Writer.Stats().InUse)

		// The writer pool has a single connection; a write must get it.
		writeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		_, err := db.Writer.ExecContext(writeCtx,
			`UPDATE record_counters SET last_id = last_id WHERE domain = 'education'`)
		require.NoError(t, err)
	})

	t.Run("migrate needs an opened database", func(t *testing.T) {
		require.Error(t, Migrate(&DB{Dialect: SQLite}))
	})

	t.Run("counters are seeded", func(t *testing.T) {
		var n int
		require.NoError(t, db.Reader.QueryRowContext(ctx, `SELECT COUNT(*) FROM record_counters`).Scan(&n))
		assert.Equal(t, 4, n)
	})

	t.Run("failed tx rolls back", func(t *testing.T) {
		boom := errors.New("boom")
		err := db.RunInTx(ctx, func(txCtx context.Context) error {
			_, err := db.Conn(txCtx).ExecContext(txCtx, db.Rebind(
				`UPDATE record_counters SET last_id = last_id + 1 WHERE domain = ?`), "education")
			require.NoError(t, err)
			return boom
		})
		require.ErrorIs(t, err, boom)

		var last int64
		require.NoError(t, db.Reader.QueryRowContext(ctx,
			`SELECT last_id FROM record_counters WHERE domain = 'education'`).Scan(&last))
		assert.Zero(t, last)
	})

	t.Run("nested RunInTx joins the outer transaction", func(t *testing.T) {
		err := db.RunInTx(ctx, func(outer context.Context) error {
			return db.RunInTx(outer, func(inner context.Context) error {
				_, err := db.Conn(inner).ExecContext(inner,
					`UPDATE record_counters SET last_id = 7 WHERE domain = 'achievement'`)
				return err
			})
		})
		require.NoError(t, err)

		var last int64
		require.NoError(t, db.Reader.QueryRowContext(ctx,
			`SELECT last_id FROM record_counters WHERE domain = 'achievement'`).Scan(&last))
		assert.Equal(t, int64(7), last)
	})

	t.Run("commit hooks run only after a successful commit", func(t *testing.T) {
		var ran []string
		require.NoError(t, db.RunInTx(ctx, func(txCtx context.Context) error {
			tx.AfterCommit(txCtx, func() { ran = append(ran, "committed") })
			return nil
		}))

		require.Error(t, db.RunInTx(ctx, func(txCtx context.Context) error {
			tx.AfterCommit(txCtx, func() { ran = append(ran, "rolled back") })
			return errors.New("boom")
		}))

		cancelled, cancel := context.WithCancel(ctx)
		err := db.RunInTx(cancelled, func(txCtx context.Context) error {
			tx.AfterCommit(txCtx, func() { ran = append(ran, "commit failed") })
			cancel()
			return nil
		})
		require.Error(t, err)

		assert.Equal(t, []string{"committed"}, ran)
	})
}
