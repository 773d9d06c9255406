package codes

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
	"github.com/jackc/pgx/v5/pgconn"
)

// uniqueViolation is the PostgreSQL SQLSTATE for a duplicate key.
const uniqueViolation = "23505"

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Create(ctx context.Context, c *models.VerificationCode) error {
	query :=
		`INSERT INTO verification_codes (id, code, test_type, symptom_date, expires_at)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at
		 `

	var symptomDate sql.NullTime
	if c.SymptomDate != nil {
		symptomDate = sql.NullTime{Time: *c.SymptomDate, Valid: true}
	}

	err := r.db.QueryRowContext(ctx, query, c.ID, c.Code, c.TestType, symptomDate, c.ExpiresAt).Scan(&c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return common.ErrorConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) FindByCode(ctx context.Context, code string) (*models.VerificationCode, error) {
	query :=
		`SELECT id, code, test_type, symptom_date, expires_at, claimed, claimed_at, created_at
		 FROM verification_codes
		 WHERE code = $1
		 FOR UPDATE
		 `

	var (
		c           models.VerificationCode
		symptomDate sql.NullTime
		claimedAt   sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, code).Scan(
		&c.ID, &c.Code, &c.TestType, &symptomDate, &c.ExpiresAt, &c.Claimed, &claimedAt, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}

	if symptomDate.Valid {
		c.SymptomDate = &symptomDate.Time
	}
	if claimedAt.Valid {
		c.ClaimedAt = &claimedAt.Time
	}
	return &c, nil
}

// MarkClaimed flips an unclaimed code to claimed. A code that is missing or
// already claimed yields common.ErrorNotFound.
func (r *PostgresRepository) MarkClaimed(ctx context.Context, id string, at time.Time) error {
	query :=
		`UPDATE verification_codes SET claimed = TRUE, claimed_at = $2
		 WHERE id = $1 AND NOT claimed
		 `

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query :=
		`DELETE FROM verification_codes
		 WHERE expires_at < $1
		 `

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return res.RowsAffected()
}
