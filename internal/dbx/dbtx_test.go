package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE cursors (source TEXT PRIMARY KEY, file_name TEXT NOT NULL)`)
	require.NoError(t, err)
	return db
}

func countCursors(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM cursors`).Scan(&n))
	return n
}

func insertCursor(ctx context.Context, tx DBTX, source string) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO cursors(source, file_name) VALUES (?, 'US/1-2-00001.zip')`, source)
	return err
}

func TestWithTx_Commits(t *testing.T) {
	db := openDB(t)

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		return insertCursor(ctx, tx, "US")
	})
	require.NoError(t, err)
	assert.Equal(t, 1, countCursors(t, db))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := openDB(t)
	boom := errors.New("boom")

	err := WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
		require.NoError(t, insertCursor(ctx, tx, "US"))
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 0, countCursors(t, db))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	db := openDB(t)

	assert.Panics(t, func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			require.NoError(t, insertCursor(ctx, tx, "US"))
			panic("kaput")
		})
	})
	assert.Equal(t, 0, countCursors(t, db))
}

func TestWithTx_BeginError(t *testing.T) {
	db := openDB(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.False(t, called)
}

func TestInTx_ReturnsValue(t *testing.T) {
	db := openDB(t)

	n, err := InTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) (int, error) {
		for _, s := range []string{"US", "MX"} {
			if err := insertCursor(ctx, tx, s); err != nil {
				return 0, err
			}
		}
		var n int
		err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cursors`).Scan(&n)
		return n, err
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, countCursors(t, db))
}

func TestInTx_ZeroValueOnError(t *testing.T) {
	db := openDB(t)

	s, err := InTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) (string, error) {
		require.NoError(t, insertCursor(ctx, tx, "US"))
		return "partial", insertCursor(ctx, tx, "US")
	})
	require.Error(t, err)
	assert.Empty(t, s)
	assert.Equal(t, 0, countCursors(t, db))
}
