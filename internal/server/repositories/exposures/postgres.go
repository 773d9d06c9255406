package exposures

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
)

const columns = `exposure_key, transmission_risk, interval_number, interval_count, region, traveler,
		 health_authority_id, report_type, days_since_onset, published_at, revised`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExposure(s scanner) (*models.Exposure, error) {
	var (
		e    models.Exposure
		days sql.NullInt32
	)
	if err := s.Scan(&e.ExposureKey, &e.TransmissionRisk, &e.IntervalNumber, &e.IntervalCount, &e.Region, &e.Traveler,
		&e.HealthAuthorityID, &e.ReportType, &days, &e.PublishedAt, &e.Revised); err != nil {
		return nil, err
	}
	if days.Valid {
		e.DaysSinceOnset = &days.Int32
	}
	return &e, nil
}

func (r *PostgresRepository) query(ctx context.Context, query string, args ...any) ([]*models.Exposure, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var out []*models.Exposure
	for rows.Next() {
		e, err := scanExposure(rows)
		if err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

func (r *PostgresRepository) FindByKeys(ctx context.Context, keys []string) (map[string]*models.Exposure, error) {
	found := make(map[string]*models.Exposure)
	if len(keys) == 0 {
		return found, nil
	}

	query := `SELECT ` + columns + `
		 FROM exposures
		 WHERE exposure_key = ANY($1)
		 FOR UPDATE
		 `

	list, err := r.query(ctx, query, keys)
	if err != nil {
		return nil, err
	}
	for _, e := range list {
		found[e.ExposureKey] = e
	}
	return found, nil
}

func (r *PostgresRepository) Upsert(ctx context.Context, exposures []*models.Exposure) (int, error) {
	query :=
		`INSERT INTO exposures (` + columns + `)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 ON CONFLICT (exposure_key) DO UPDATE SET
		   transmission_risk = EXCLUDED.transmission_risk,
		   interval_number = EXCLUDED.interval_number,
		   interval_count = EXCLUDED.interval_count,
		   region = EXCLUDED.region,
		   traveler = EXCLUDED.traveler,
		   health_authority_id = EXCLUDED.health_authority_id,
		   report_type = EXCLUDED.report_type,
		   days_since_onset = EXCLUDED.days_since_onset,
		   published_at = EXCLUDED.published_at,
		   revised = EXCLUDED.revised
		 `

	written := 0
	for _, e := range exposures {
		var days sql.NullInt32
		if e.DaysSinceOnset != nil {
			days = sql.NullInt32{Int32: *e.DaysSinceOnset, Valid: true}
		}
		res, err := r.db.ExecContext(ctx, query,
			e.ExposureKey, e.TransmissionRisk, e.IntervalNumber, e.IntervalCount, e.Region, e.Traveler,
			e.HealthAuthorityID, e.ReportType, days, e.PublishedAt, e.Revised)
		if err != nil {
			return written, fmt.Errorf("db error: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil {
			written += int(n)
		}
	}
	return written, nil
}

func (r *PostgresRepository) ListPublishedBetween(ctx context.Context, region string, after, until time.Time) ([]*models.Exposure, error) {
	query := `SELECT ` + columns + `
		 FROM exposures
		 WHERE region = $1 AND published_at > $2 AND published_at <= $3
		 ORDER BY published_at, exposure_key
		 `
	return r.query(ctx, query, region, after, until)
}
