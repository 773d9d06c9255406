package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/server/migrations"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/codes"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/exports"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/exposures"
)

// PostgresRepositoryManager hands out the postgres repositories for a
// connection or a transaction.
type PostgresRepositoryManager struct{}

func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

func (m *PostgresRepositoryManager) Codes(db dbx.DBTX) codes.Repository {
	return codes.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Exposures(db dbx.DBTX) exposures.Repository {
	return exposures.NewPostgresRepository(db)
}

func (m *PostgresRepositoryManager) Exports(db dbx.DBTX) exports.Repository {
	return exports.NewPostgresRepository(db)
}

// gooseUpContext is replaced in tests.
var gooseUpContext = goose.UpContext

// RunMigrations applies the embedded schema migrations that db has not
// seen yet.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return fmt.Errorf("set migration dialect: %w", err)
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
