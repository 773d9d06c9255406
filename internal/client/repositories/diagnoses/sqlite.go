package diagnoses

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/client/models"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
)

// SQLiteRepository implements Repository over a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const selectColumns = `id, verification_code, hmac_key, long_term_token, certificate, certified_hmac,
	revision_token, test_type, symptom_onset, traveler, shared_status, created_at, updated_at`

func onsetValue(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(api.DateFormat), Valid: true}
}

// blobValue stores an empty slice as NULL.
func blobValue(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func (r *SQLiteRepository) Create(ctx context.Context, d *models.DiagnosisRecord) error {
	query := `INSERT INTO diagnoses (id, verification_code, hmac_key, long_term_token, certificate, certified_hmac,
			revision_token, test_type, symptom_onset, traveler, shared_status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.VerificationCode, d.HMACKey, d.LongTermToken, d.Certificate, blobValue(d.CertifiedHMAC),
		d.RevisionToken, d.TestType, onsetValue(d.SymptomOnset), d.Traveler, string(d.SharedStatus),
		d.CreatedAt.UnixMilli(), d.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert diagnosis: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, d *models.DiagnosisRecord) error {
	query := `UPDATE diagnoses SET hmac_key = ?, long_term_token = ?, certificate = ?, certified_hmac = ?,
			revision_token = ?, test_type = ?, symptom_onset = ?, traveler = ?,
			shared_status = ?, updated_at = ?
		WHERE id = ?`

	res, err := r.db.ExecContext(ctx, query,
		d.HMACKey, d.LongTermToken, d.Certificate, blobValue(d.CertifiedHMAC),
		d.RevisionToken, d.TestType, onsetValue(d.SymptomOnset), d.Traveler,
		string(d.SharedStatus), d.UpdatedAt.UnixMilli(), d.ID)
	if err != nil {
		return fmt.Errorf("failed to update diagnosis: %w", err)
	}

	ra, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if ra == 0 {
		return fmt.Errorf("diagnosis %s: %w", d.ID, common.ErrorNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*models.DiagnosisRecord, error) {
	var (
		d                models.DiagnosisRecord
		onset            sql.NullString
		status           string
		created, updated int64
	)

	err := s.Scan(&d.ID, &d.VerificationCode, &d.HMACKey, &d.LongTermToken, &d.Certificate, &d.CertifiedHMAC,
		&d.RevisionToken, &d.TestType, &onset, &d.Traveler, &status, &created, &updated)
	if err != nil {
		return nil, err
	}

	if onset.Valid {
		t, err := time.Parse(api.DateFormat, onset.String)
		if err != nil {
			return nil, fmt.Errorf("diagnosis %s: bad symptom onset %q: %w", d.ID, onset.String, err)
		}
		d.SymptomOnset = &t
	}
	if len(d.CertifiedHMAC) == 0 {
		d.CertifiedHMAC = nil
	}
	d.SharedStatus = models.SharedStatus(status)
	d.CreatedAt = time.UnixMilli(created).UTC()
	d.UpdatedAt = time.UnixMilli(updated).UTC()
	return &d, nil
}

func (r *SQLiteRepository) getOne(ctx context.Context, query string, arg any) (*models.DiagnosisRecord, error) {
	d, err := scanRecord(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query row scan failed: %w", err)
	}
	return d, nil
}

func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM diagnoses WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetByVerificationCode(ctx context.Context, code string) (*models.DiagnosisRecord, error) {
	return r.getOne(ctx, `SELECT `+selectColumns+` FROM diagnoses WHERE verification_code = ?
		ORDER BY created_at DESC LIMIT 1`, code)
}

func (r *SQLiteRepository) List(ctx context.Context) ([]*models.DiagnosisRecord, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM diagnoses ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("failed to select diagnoses: %w", err)
	}
	defer rows.Close()

	var result []*models.DiagnosisRecord
	for rows.Next() {
		d, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
