// Package download fetches new export files published for each region.
//
// Every region has an index at <base>/<region>/index.txt listing object
// names relative to <base>, one per line, oldest first. Entries up to and
// including the region's cursor were ingested before and are skipped.
package download

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/exposurekeys/internal/client/submitter"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/filex"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/netx"
)

type CursorReader interface {
	Get(ctx context.Context, source string) (*metadata.Cursor, error)
}

type Downloader struct {
	baseURL string
	workDir string
	http    *http.Client
	cursors CursorReader
	trusted []export.VerificationKey
	log     logging.Logger

	skipVerify bool
}

// ErrNoTrustedKeys is returned by Download when signatures cannot be checked
// and verification was not explicitly turned off.
var ErrNoTrustedKeys = errors.New("no trusted export keys configured")

type Option func(*Downloader)

// WithoutVerification accepts files whose signatures are not checked. It is
// meant for local tooling against self-signed exports only.
func WithoutVerification() Option {
	return func(d *Downloader) { d.skipVerify = true }
}

// New returns a Downloader that accepts only files signed by one of trusted.
func New(baseURL, workDir string, c *http.Client, cursors CursorReader, trusted []export.VerificationKey, log logging.Logger, opts ...Option) *Downloader {
	if c == nil {
		c = http.DefaultClient
	}
	d := &Downloader{
		baseURL: strings.TrimRight(baseURL, "/"),
		workDir: workDir,
		http:    c,
		cursors: cursors,
		trusted: trusted,
		log:     log.With("module", "download"),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Download fetches the new files of every region. A failing region does not
// stop the others; its error is joined into the returned error and its
// partial downloads are removed.
func (d *Downloader) Download(ctx context.Context, regions []string) ([]submitter.File, error) {
	switch {
	case d.skipVerify:
		d.log.Warn(ctx, "export signature verification is disabled")
	case len(d.trusted) == 0:
		return nil, ErrNoTrustedKeys
	}

	var (
		files []submitter.File
		errs  []error
	)
	for _, region := range regions {
		got, err := d.downloadRegion(ctx, region)
		if err != nil {
			errs = append(errs, fmt.Errorf("region %s: %w", region, err))
			continue
		}
		files = append(files, got...)
	}
	return files, errors.Join(errs...)
}

func parseIndex(data []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			names = append(names, line)
		}
	}
	return names
}

// pending returns the index entries after the cursor. If the cursor's file
// is no longer listed, names sorting after it are returned.
func pending(names []string, cur *metadata.Cursor) []string {
	if cur == nil || cur.FileName == "" {
		return names
	}
	for i, n := range names {
		if n == cur.FileName {
			return names[i+1:]
		}
	}
	var out []string
	for _, n := range names {
		if n > cur.FileName {
			out = append(out, n)
		}
	}
	return out
}

func (d *Downloader) downloadRegion(ctx context.Context, region string) ([]submitter.File, error) {
	indexURL := d.baseURL + "/" + region + "/" + api.IndexFile
	data, err := netx.Fetch(ctx, d.http, indexURL)
	if errors.Is(err, common.ErrorNotFound) {
		d.log.Info(ctx, "no exports published yet", "region", region)
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	cur, err := d.cursors.Get(ctx, region)
	if err != nil {
		return nil, err
	}

	names := pending(parseIndex(data), cur)
	if len(names) == 0 {
		d.log.Debug(ctx, "no new exports", "region", region)
		return nil, nil
	}

	dir, err := filex.EnsureDir(filepath.Join(d.workDir, region))
	if err != nil {
		return nil, err
	}

	files := make([]submitter.File, 0, len(names))
	cleanup := func() {
		for _, f := range files {
			_ = os.Remove(f.Path)
		}
	}

	for _, name := range names {
		f, err := d.fetchFile(ctx, dir, region, name)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		files = append(files, f)
	}
	files[len(files)-1].MostRecent = true

	d.log.Info(ctx, "downloaded exports", "region", region, "files", len(files))
	return files, nil
}

func (d *Downloader) fetchFile(ctx context.Context, dir, region, name string) (submitter.File, error) {
	uri := d.baseURL + "/" + strings.TrimLeft(name, "/")
	data, err := netx.Fetch(ctx, d.http, uri)
	if err != nil {
		return submitter.File{}, err
	}

	a, err := export.Decode(data)
	if err != nil {
		return submitter.File{}, err
	}
	if !d.skipVerify {
		if err := export.Verify(a, d.trusted); err != nil {
			return submitter.File{}, err
		}
	}
	if a.Batch.Region != region {
		return submitter.File{}, fmt.Errorf("%w: file is for region %q", export.ErrMalformedExport, a.Batch.Region)
	}

	local := filepath.Join(dir, path.Base(name))
	if err := filex.WriteFileAtomic(local, data, 0o600); err != nil {
		return submitter.File{}, err
	}
	return submitter.File{Path: local, Source: region, Name: name, URI: uri}, nil
}
