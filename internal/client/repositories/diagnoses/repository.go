// Package diagnoses persists DiagnosisRecord values in the client's SQLite
// database.
//
// Records are created once the verification code has been exchanged for a
// long-term token and updated after every later upload stage, so an
// interrupted upload can resume from the last completed stage. Nothing in
// this package deletes records.
package diagnoses

import (
	"context"

	"github.com/dmitrijs2005/exposurekeys/internal/client/models"
)

type Repository interface {
	// Create inserts a new record. The caller assigns the ID.
	Create(ctx context.Context, r *models.DiagnosisRecord) error

	// Update overwrites every mutable column of an existing record.
	// It returns common.ErrorNotFound when no row has that ID.
	Update(ctx context.Context, r *models.DiagnosisRecord) error

	GetByID(ctx context.Context, id string) (*models.DiagnosisRecord, error)

	// GetByVerificationCode returns the newest record for code.
	GetByVerificationCode(ctx context.Context, code string) (*models.DiagnosisRecord, error)

	List(ctx context.Context) ([]*models.DiagnosisRecord, error)
}
