package exports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) LatestEnd(ctx context.Context, region string) (time.Time, bool, error) {
	query :=
		`SELECT MAX(end_timestamp) FROM export_batches
		 WHERE region = $1
		 `

	var end sql.NullTime
	if err := r.db.QueryRowContext(ctx, query, region).Scan(&end); err != nil {
		return time.Time{}, false, fmt.Errorf("db error: %w", err)
	}
	return end.Time, end.Valid, nil
}

func (r *PostgresRepository) CreateBatch(ctx context.Context, b *models.ExportBatch) error {
	query :=
		`INSERT INTO export_batches (id, region, start_timestamp, end_timestamp)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, b.ID, b.Region, b.StartTimestamp, b.EndTimestamp).Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) AddFile(ctx context.Context, f *models.ExportFile) error {
	query :=
		`INSERT INTO export_files (filename, batch_id, region, batch_num, batch_size, key_count)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at
		 `

	err := r.db.QueryRowContext(ctx, query, f.Filename, f.BatchID, f.Region, f.BatchNum, f.BatchSize, f.Keys).Scan(&f.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) ListFiles(ctx context.Context, region string) ([]string, error) {
	query :=
		`SELECT filename FROM export_files
		 WHERE region = $1
		 ORDER BY created_at, filename
		 `

	rows, err := r.db.QueryContext(ctx, query, region)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return names, nil
}
