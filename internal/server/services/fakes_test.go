package services

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/server/config"
	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/codes"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/exports"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/exposures"
	"github.com/stretchr/testify/require"
)

// memStore backs in-memory versions of every repository.
type memStore struct {
	mu        sync.Mutex
	codes     map[string]*models.VerificationCode
	exposures map[string]*models.Exposure
	batches   []*models.ExportBatch
	files     []*models.ExportFile
}

func newMemStore() *memStore {
	return &memStore{
		codes:     map[string]*models.VerificationCode{},
		exposures: map[string]*models.Exposure{},
	}
}

type fakeManager struct{ st *memStore }

func (m fakeManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m fakeManager) Codes(dbx.DBTX) codes.Repository              { return (*memCodes)(m.st) }
func (m fakeManager) Exposures(dbx.DBTX) exposures.Repository      { return (*memExposures)(m.st) }
func (m fakeManager) Exports(dbx.DBTX) exports.Repository          { return (*memExports)(m.st) }

type memCodes memStore

func (r *memCodes) Create(_ context.Context, c *models.VerificationCode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.codes[c.Code]; ok {
		return common.ErrorConflict
	}
	cp := *c
	r.codes[c.Code] = &cp
	return nil
}

func (r *memCodes) FindByCode(_ context.Context, code string) (*models.VerificationCode, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.codes[code]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCodes) MarkClaimed(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.codes {
		if c.ID == id && !c.Claimed {
			c.Claimed = true
			c.ClaimedAt = &at
			return nil
		}
	}
	return common.ErrorNotFound
}

func (r *memCodes) DeleteExpired(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for k, c := range r.codes {
		if c.ExpiresAt.Before(before) {
			delete(r.codes, k)
			n++
		}
	}
	return n, nil
}

type memExposures memStore

func (r *memExposures) FindByKeys(_ context.Context, ks []string) (map[string]*models.Exposure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]*models.Exposure{}
	for _, k := range ks {
		if e, ok := r.exposures[k]; ok {
			cp := *e
			out[k] = &cp
		}
	}
	return out, nil
}

func (r *memExposures) Upsert(_ context.Context, es []*models.Exposure) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range es {
		cp := *e
		r.exposures[e.ExposureKey] = &cp
	}
	return len(es), nil
}

func (r *memExposures) ListPublishedBetween(_ context.Context, region string, after, until time.Time) ([]*models.Exposure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Exposure
	for _, e := range r.exposures {
		if e.Region == region && e.PublishedAt.After(after) && !e.PublishedAt.After(until) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExposureKey < out[j].ExposureKey })
	return out, nil
}

type memExports memStore

func (r *memExports) LatestEnd(_ context.Context, region string) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var end time.Time
	ok := false
	for _, b := range r.batches {
		if b.Region == region && b.EndTimestamp.After(end) {
			end, ok = b.EndTimestamp, true
		}
	}
	return end, ok, nil
}

func (r *memExports) CreateBatch(_ context.Context, b *models.ExportBatch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, b)
	return nil
}

func (r *memExports) AddFile(_ context.Context, f *models.ExportFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files = append(r.files, f)
	return nil
}

func (r *memExports) ListFiles(_ context.Context, region string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, f := range r.files {
		if f.Region == region {
			out = append(out, f.Filename)
		}
	}
	return out, nil
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func testConfig() *config.Config {
	return &config.Config{
		SecretKey:           "secret",
		RevisionKey:         "revision",
		CodeValidity:        time.Hour,
		TokenValidity:       24 * time.Hour,
		CertificateValidity: 15 * time.Minute,
		ExportRegion:        "US",
		ExportBatchSize:     2,
	}
}
