package exposures

import (
	"context"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
)

type Repository interface {
	// FindByKeys returns the stored exposures among keys, indexed by key.
	FindByKeys(ctx context.Context, keys []string) (map[string]*models.Exposure, error)
	// Upsert inserts exposures and replaces the ones that already exist. It
	// returns the number of rows written.
	Upsert(ctx context.Context, exposures []*models.Exposure) (int, error)
	// ListPublishedBetween returns exposures of region published in
	// (after, until], oldest first.
	ListPublishedBetween(ctx context.Context, region string, after, until time.Time) ([]*models.Exposure, error)
}
