package repomanager

import (
	"context"
	"database/sql"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/exposurekeys/internal/server/migrations"
)

func stubGoose(t *testing.T, fn func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error) {
	t.Helper()
	orig := gooseUpContext
	gooseUpContext = fn
	t.Cleanup(func() { gooseUpContext = orig })
}

func TestRepositoriesShareTheHandle(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	m := NewPostgresRepositoryManager()
	mock.ExpectExec(`DELETE FROM verification_codes`).WillReturnResult(sqlmock.NewResult(0, 2))

	n, err := m.Codes(db).DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	assert.NotNil(t, m.Exposures(db))
	assert.NotNil(t, m.Exports(db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_UsesEmbeddedRoot(t *testing.T) {
	var gotDir string
	stubGoose(t, func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	})

	require.NoError(t, NewPostgresRepositoryManager().RunMigrations(context.Background(), nil))
	assert.Equal(t, ".", gotDir)
}

func TestRunMigrations_WrapsError(t *testing.T) {
	boom := errors.New("boom")
	stubGoose(t, func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error { return boom })

	err := NewPostgresRepositoryManager().RunMigrations(context.Background(), nil)
	require.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "apply migrations")
}

func TestEmbeddedMigrations(t *testing.T) {
	names, err := fs.Glob(migrations.Migrations, "*.sql")
	require.NoError(t, err)
	require.NotEmpty(t, names)

	data, err := fs.ReadFile(migrations.Migrations, names[0])
	require.NoError(t, err)
	for _, table := range []string{"verification_codes", "exposures", "export_batches", "export_files"} {
		assert.True(t, strings.Contains(string(data), "CREATE TABLE IF NOT EXISTS "+table), table)
	}
	assert.Contains(t, string(data), "-- +goose Down")
}
