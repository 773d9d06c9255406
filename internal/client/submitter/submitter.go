// Package submitter hands downloaded export files to the matching engine and
// cleans up after it.
//
// A submission is all or nothing: the engine gets every file in one call and
// either accepts the whole set or rejects it. Local files are deleted in both
// cases, once the engine call has returned. Download cursors only move on
// success.
package submitter

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

// DefaultTimeout bounds the engine call, which may process many files.
const DefaultTimeout = time.Hour

type Status string

const (
	StatusPending         Status = "PENDING"
	StatusSubmittedOK     Status = "SUBMITTED_OK"
	StatusSubmittedFailed Status = "SUBMITTED_FAILED"
)

// File is one downloaded export container.
type File struct {
	Path   string
	Source string
	Name   string
	URI    string
	// MostRecent marks the newest file of its source in this submission.
	MostRecent bool
}

type Result struct {
	Status Status
	Files  int
	Err    error
}

// Engine is the matching engine surface the submitter needs.
type Engine interface {
	ProvideDiagnosisKeys(ctx context.Context, paths []string) error
}

type CursorSaver interface {
	Save(ctx context.Context, cur metadata.Cursor) error
}

type Submitter struct {
	engine      Engine
	cursors     CursorSaver
	log         logging.Logger
	debugFilter string
	timeout     time.Duration

	now    func() time.Time
	remove func(string) error
}

type Option func(*Submitter)

// WithDebugFilter makes the submitter decode each file and log the keys
// whose hex form contains filter. It never changes what is submitted.
func WithDebugFilter(filter string) Option {
	return func(s *Submitter) { s.debugFilter = strings.ToLower(filter) }
}

func WithTimeout(d time.Duration) Option {
	return func(s *Submitter) { s.timeout = d }
}

func New(engine Engine, cursors CursorSaver, log logging.Logger, opts ...Option) *Submitter {
	s := &Submitter{
		engine:  engine,
		cursors: cursors,
		log:     log.With("module", "submitter"),
		timeout: DefaultTimeout,
		now:     time.Now,
		remove:  os.Remove,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit feeds files to the engine in a single call. No retries happen
// here.
func (s *Submitter) Submit(ctx context.Context, files []File) Result {
	res := Result{Status: StatusPending, Files: len(files)}
	if len(files) == 0 {
		res.Status = StatusSubmittedOK
		return res
	}

	if s.debugFilter != "" {
		s.logMatchingKeys(ctx, files)
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	err := s.engine.ProvideDiagnosisKeys(callCtx, paths)
	cancel()

	if err != nil {
		s.log.Error(ctx, "matching engine rejected export files", "files", len(files), "error", err)
		s.deleteAll(ctx, files)
		res.Status = StatusSubmittedFailed
		res.Err = fmt.Errorf("provide diagnosis keys: %w", err)
		return res
	}

	for _, f := range files {
		if !f.MostRecent {
			continue
		}
		cur := metadata.Cursor{Source: f.Source, FileName: f.Name, URI: f.URI, UpdatedAt: s.now().UTC()}
		if err := s.cursors.Save(ctx, cur); err != nil {
			// The files were ingested; the next download fetches them again.
			s.log.Error(ctx, "failed to save download cursor", "source", f.Source, "file", f.Name, "error", err)
		}
	}

	s.deleteAll(ctx, files)
	s.log.Info(ctx, "export files submitted", "files", len(files))
	res.Status = StatusSubmittedOK
	return res
}

func (s *Submitter) deleteAll(ctx context.Context, files []File) {
	for _, f := range files {
		if err := s.remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Warn(ctx, "failed to delete export file", "path", f.Path, "error", err)
		}
	}
}

func (s *Submitter) logMatchingKeys(ctx context.Context, files []File) {
	for _, f := range files {
		a, err := export.ReadFile(f.Path)
		if err != nil {
			s.log.Debug(ctx, "debug filter: cannot decode file", "path", f.Path, "error", err)
			continue
		}
		for _, k := range a.Batch.Keys {
			h := hex.EncodeToString(k.KeyData())
			if strings.Contains(h, s.debugFilter) {
				s.log.Info(ctx, "debug filter matched key",
					"path", f.Path,
					"key", h,
					"rolling_start", k.RollingStart(),
					"rolling_period", k.RollingPeriod(),
					"batch", fmt.Sprintf("%d/%d", a.Batch.BatchNum, a.Batch.BatchSize),
					"signatures", len(a.Signatures))
			}
		}
	}
}
