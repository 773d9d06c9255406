package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"

	"github.com/dmitrijs2005/exposurekeys/internal/client/migrations"
	"github.com/dmitrijs2005/exposurekeys/internal/client/repositories/diagnoses"
	"github.com/dmitrijs2005/exposurekeys/internal/client/repositories/metadata"

	_ "modernc.org/sqlite"
)

type Repositories struct {
	Metadata  metadata.Repository
	Cursors   metadata.CursorRepository
	Diagnoses diagnoses.Repository
}

func NewRepositories(db *sql.DB) *Repositories {
	return &Repositories{
		Metadata:  metadata.NewSQLiteRepository(db),
		Cursors:   metadata.NewSQLiteCursors(db),
		Diagnoses: diagnoses.NewSQLiteRepository(db),
	}
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite file at dsn and brings its schema up to date.
func InitDatabase(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
