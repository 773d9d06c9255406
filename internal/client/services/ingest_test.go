package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/exposurekeys/internal/client/submitter"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

type fakeDownloader struct {
	files   []submitter.File
	err     error
	regions []string
}

func (f *fakeDownloader) Download(_ context.Context, regions []string) ([]submitter.File, error) {
	f.regions = regions
	return f.files, f.err
}

type fakeSubmitter struct {
	got []submitter.File
	res submitter.Result
}

func (f *fakeSubmitter) Submit(_ context.Context, files []submitter.File) submitter.Result {
	f.got = files
	return f.res
}

func TestIngest_SubmitsDownloadedFiles(t *testing.T) {
	files := []submitter.File{{Path: "/w/US/1.zip", Source: "US", MostRecent: true}}
	d := &fakeDownloader{files: files}
	sub := &fakeSubmitter{res: submitter.Result{Status: submitter.StatusSubmittedOK, Files: 1}}

	res, err := NewIngestService(d, sub, []string{"US"}, logging.Discard()).Ingest(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, submitter.StatusSubmittedOK, res.Status)
	assert.Equal(t, files, sub.got)
	assert.Equal(t, []string{"US"}, d.regions)
}

func TestIngest_PartialDownloadStillSubmits(t *testing.T) {
	dlErr := errors.New("region CA: boom")
	files := []submitter.File{{Path: "/w/US/1.zip", Source: "US", MostRecent: true}}
	sub := &fakeSubmitter{res: submitter.Result{Status: submitter.StatusSubmittedOK, Files: 1}}

	res, err := NewIngestService(&fakeDownloader{files: files, err: dlErr}, sub, []string{"US", "CA"}, logging.Discard()).Ingest(context.Background())
	assert.ErrorIs(t, err, dlErr)
	assert.Equal(t, submitter.StatusSubmittedOK, res.Status)
	assert.Len(t, sub.got, 1)
}

func TestIngest_SubmissionFailure(t *testing.T) {
	engineErr := errors.New("engine down")
	sub := &fakeSubmitter{res: submitter.Result{Status: submitter.StatusSubmittedFailed, Err: engineErr}}

	res, err := NewIngestService(&fakeDownloader{files: []submitter.File{{Path: "x"}}}, sub, nil, logging.Discard()).Ingest(context.Background())
	assert.ErrorIs(t, err, engineErr)
	assert.Equal(t, submitter.StatusSubmittedFailed, res.Status)
}
