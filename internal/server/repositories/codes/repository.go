package codes

import (
	"context"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, code *models.VerificationCode) error
	// FindByCode locks the row when called inside a transaction.
	FindByCode(ctx context.Context, code string) (*models.VerificationCode, error)
	MarkClaimed(ctx context.Context, id string, at time.Time) error
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}
