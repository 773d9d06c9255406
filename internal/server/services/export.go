package services

import (
	"context"
	"database/sql"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/server/config"
	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	// MaxKeyAge is how far back the first export of a region reaches.
	MaxKeyAge = 14 * 24 * time.Hour

	// settleDelay keeps the export window clear of publishes that may not
	// have committed yet.
	settleDelay = time.Minute
)

// ObjectStore is where export containers and region indexes go.
type ObjectStore interface {
	PutExport(ctx context.Context, key string, body []byte) error
	PutIndex(ctx context.Context, key string, body []byte) error
}

type ExportService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	store       ObjectStore
	encoder     export.Encoder
	region      string
	log         logging.Logger

	now func() time.Time
}

func NewExportService(db *sql.DB, m repomanager.RepositoryManager, store ObjectStore, signer export.Signer, cfg *config.Config, log logging.Logger) *ExportService {
	return &ExportService{
		db:          db,
		repomanager: m,
		store:       store,
		encoder:     export.Encoder{Signers: []export.Signer{signer}, MaxBatchSize: cfg.ExportBatchSize},
		region:      cfg.ExportRegion,
		log:         log.With("module", "export", "region", cfg.ExportRegion),
		now:         time.Now,
	}
}

// IndexKey is the object name of a region's index.
func IndexKey(region string) string {
	return path.Join(region, api.IndexFile)
}

func toKey(e *models.Exposure) (keys.DiagnosisKey, error) {
	rt, err := keys.ParseReportType(e.ReportType)
	if err != nil {
		return keys.DiagnosisKey{}, err
	}
	opts := []keys.Option{keys.WithReportType(rt)}
	if e.DaysSinceOnset != nil {
		opts = append(opts, keys.WithDaysSinceOnset(*e.DaysSinceOnset))
	}
	return keys.FromBase64(e.ExposureKey, uint32(e.IntervalNumber), uint32(e.IntervalCount), e.TransmissionRisk, opts...)
}

// RunOnce exports the keys published since the previous window ended. It
// returns the number of files written. An empty window writes nothing and
// is folded into the next one.
func (s *ExportService) RunOnce(ctx context.Context) (int, error) {
	batches := s.repomanager.Exports(s.db)

	end := s.now().UTC().Add(-settleDelay).Truncate(time.Second)
	start, ok, err := batches.LatestEnd(ctx, s.region)
	if err != nil {
		return 0, err
	}
	if !ok {
		start = end.Add(-MaxKeyAge)
	}
	start = start.UTC()
	if !end.After(start) {
		return 0, nil
	}

	exposures, err := s.repomanager.Exposures(s.db).ListPublishedBetween(ctx, s.region, start, end)
	if err != nil {
		return 0, err
	}

	ks := make([]keys.DiagnosisKey, 0, len(exposures))
	for _, e := range exposures {
		k, err := toKey(e)
		if err != nil {
			s.log.Warn(ctx, "skipping unexportable exposure", "error", err)
			continue
		}
		ks = append(ks, k)
	}
	if len(ks) == 0 {
		s.log.Debug(ctx, "nothing to export", "start", start, "end", end)
		return 0, nil
	}

	signed, err := s.encoder.Encode(ctx, ks, start, end, s.region)
	if err != nil {
		return 0, fmt.Errorf("encode export: %w", err)
	}

	batch := &models.ExportBatch{ID: uuid.NewString(), Region: s.region, StartTimestamp: start, EndTimestamp: end}
	files := make([]*models.ExportFile, 0, len(signed))
	for _, se := range signed {
		body, err := se.Zip()
		if err != nil {
			return 0, fmt.Errorf("package batch %d: %w", se.Batch.BatchNum, err)
		}
		name := path.Join(s.region, se.FileName())
		if err := s.store.PutExport(ctx, name, body); err != nil {
			return 0, err
		}
		files = append(files, &models.ExportFile{
			Filename:  name,
			BatchID:   batch.ID,
			Region:    s.region,
			BatchNum:  se.Batch.BatchNum,
			BatchSize: se.Batch.BatchSize,
			Keys:      len(se.Batch.Keys),
		})
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Exports(tx)
		if err := repo.CreateBatch(ctx, batch); err != nil {
			return err
		}
		for _, f := range files {
			if err := repo.AddFile(ctx, f); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("record export batch: %w", err)
	}

	if err := s.writeIndex(ctx); err != nil {
		return len(files), err
	}

	s.log.Info(ctx, "export written", "files", len(files), "keys", len(ks), "start", start, "end", end)
	return len(files), nil
}

func (s *ExportService) writeIndex(ctx context.Context) error {
	names, err := s.repomanager.Exports(s.db).ListFiles(ctx, s.region)
	if err != nil {
		return fmt.Errorf("list export files: %w", err)
	}
	var b strings.Builder
	for _, n := range names {
		b.WriteString(n)
		b.WriteByte('\n')
	}
	return s.store.PutIndex(ctx, IndexKey(s.region), []byte(b.String()))
}
