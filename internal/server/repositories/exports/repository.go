package exports

import (
	"context"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
)

type Repository interface {
	// LatestEnd returns the end of the newest batch of region. ok is false
	// before the first export.
	LatestEnd(ctx context.Context, region string) (end time.Time, ok bool, err error)
	CreateBatch(ctx context.Context, b *models.ExportBatch) error
	AddFile(ctx context.Context, f *models.ExportFile) error
	// ListFiles returns the file names of region, oldest first.
	ListFiles(ctx context.Context, region string) ([]string, error)
}
