package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/exposurekeys/internal/client/submitter"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

type Downloader interface {
	Download(ctx context.Context, regions []string) ([]submitter.File, error)
}

type FileSubmitter interface {
	Submit(ctx context.Context, files []submitter.File) submitter.Result
}

// IngestService downloads new export files for the configured regions and
// hands them to the matching engine.
type IngestService struct {
	downloader Downloader
	submitter  FileSubmitter
	regions    []string
	log        logging.Logger
}

func NewIngestService(d Downloader, s FileSubmitter, regions []string, log logging.Logger) *IngestService {
	return &IngestService{
		downloader: d,
		submitter:  s,
		regions:    regions,
		log:        log.With("module", "ingest"),
	}
}

// Ingest runs one download and submission round. Files from regions that
// downloaded cleanly are submitted even when other regions failed; the
// download errors are joined into the returned error.
func (s *IngestService) Ingest(ctx context.Context) (submitter.Result, error) {
	files, dlErr := s.downloader.Download(ctx, s.regions)
	if dlErr != nil {
		s.log.Warn(ctx, "download incomplete", "error", dlErr, "files", len(files))
	}

	res := s.submitter.Submit(ctx, files)
	return res, errors.Join(dlErr, res.Err)
}
