// Package repomanager groups the key server repositories behind one
// interface so services can bind them to a transaction.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/codes"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/exports"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/exposures"
)

// RepositoryManager vends repositories bound to a DB or a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Codes(db dbx.DBTX) codes.Repository
	Exposures(db dbx.DBTX) exposures.Repository
	Exports(db dbx.DBTX) exports.Repository
}
