package diagnoses

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/exposurekeys/internal/client/migrations"
	"github.com/dmitrijs2005/exposurekeys/internal/client/models"
	"github.com/dmitrijs2005/exposurekeys/internal/common"

	_ "modernc.org/sqlite"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	goose.SetBaseFS(migrations.Migrations)
	require.NoError(t, goose.SetDialect("sqlite3"))
	require.NoError(t, goose.Up(db, "."))
	return db
}

func newRecord(id, code string) *models.DiagnosisRecord {
	now := time.Date(2020, 5, 20, 12, 0, 0, 0, time.UTC)
	return &models.DiagnosisRecord{
		ID:               id,
		VerificationCode: code,
		HMACKey:          []byte{1, 2, 3},
		LongTermToken:    "ltt",
		TestType:         "confirmed",
		SharedStatus:     models.SharedStatusNotAttempted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestCreateGet(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	onset := time.Date(2020, 5, 18, 0, 0, 0, 0, time.UTC)
	rec := newRecord("a", "12345678")
	rec.SymptomOnset = &onset
	rec.Traveler = true

	require.NoError(t, r.Create(ctx, rec))

	got, err := r.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	got, err = r.GetByVerificationCode(ctx, "12345678")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
}

func TestGet_NotFound(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	_, err := r.GetByID(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)

	_, err = r.GetByVerificationCode(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestUpdate(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	rec := newRecord("a", "111")
	require.NoError(t, r.Create(ctx, rec))

	rec.Certificate = "cert"
	rec.CertifiedHMAC = []byte{9, 8, 7}
	rec.RevisionToken = "rev"
	rec.SharedStatus = models.SharedStatusShared
	rec.UpdatedAt = rec.UpdatedAt.Add(time.Hour)
	require.NoError(t, r.Update(ctx, rec))

	got, err := r.GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "cert", got.Certificate)
	assert.Equal(t, []byte{9, 8, 7}, got.CertifiedHMAC)
	assert.Equal(t, "rev", got.RevisionToken)
	assert.Equal(t, models.SharedStatusShared, got.SharedStatus)
	assert.Equal(t, rec.UpdatedAt, got.UpdatedAt)
	assert.Nil(t, got.SymptomOnset)

	err = r.Update(ctx, newRecord("missing", "x"))
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestList_OrderedByCreation(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	second := newRecord("b", "2")
	second.CreatedAt = second.CreatedAt.Add(time.Minute)
	require.NoError(t, r.Create(ctx, second))
	require.NoError(t, r.Create(ctx, newRecord("a", "1")))

	list, err := r.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestClosedDB(t *testing.T) {
	db := setupDB(t)
	r := NewSQLiteRepository(db)
	require.NoError(t, db.Close())

	assert.ErrorContains(t, r.Create(context.Background(), newRecord("a", "1")), "failed to insert diagnosis")
	_, err := r.List(context.Background())
	assert.ErrorContains(t, err, "failed to select diagnoses")
}
