package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/exposurekeys/internal/filex"
)

// MaxEntrySize bounds the decompressed size of each container entry.
const MaxEntrySize = 64 << 20

// Zip packages the export into a container with exactly two entries.
func (e SignedExport) Zip() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, entry := range []struct {
		name string
		data []byte
	}{
		{BinEntry, e.Bin},
		{SigEntry, e.Sig},
	} {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: entry.name, Method: zip.Deflate})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(entry.data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FileName is the object name of the container: window start and end as
// unix seconds and the batch number, which sorts in publication order.
func (e SignedExport) FileName() string {
	return fmt.Sprintf("%d-%d-%05d.zip", e.Batch.StartTimestamp.Unix(), e.Batch.EndTimestamp.Unix(), e.Batch.BatchNum)
}

// WriteFile writes the container to path atomically.
func (e SignedExport) WriteFile(path string) error {
	data, err := e.Zip()
	if err != nil {
		return err
	}
	return filex.WriteFileAtomic(path, data, 0o600)
}

// Archive is a decoded container. Signed holds the exact export.bin bytes
// the signatures were computed over.
type Archive struct {
	Header     []byte
	Signed     []byte
	Batch      Batch
	Signatures []Signature
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedExport, fmt.Sprintf(format, args...))
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, MaxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxEntrySize {
		return nil, fmt.Errorf("entry larger than %d bytes", MaxEntrySize)
	}
	return data, nil
}

// Decode splits a container into its header, batch and signature list. It
// checks structure only; call Verify to check signatures.
func Decode(container []byte) (*Archive, error) {
	zr, err := zip.NewReader(bytes.NewReader(container), int64(len(container)))
	if err != nil {
		return nil, malformed("open container: %v", err)
	}

	entries := make(map[string][]byte, 2)
	for _, f := range zr.File {
		if f.Name != BinEntry && f.Name != SigEntry {
			return nil, malformed("unexpected entry %q", f.Name)
		}
		if _, dup := entries[f.Name]; dup {
			return nil, malformed("duplicate entry %q", f.Name)
		}
		data, err := readEntry(f)
		if err != nil {
			return nil, malformed("read %s: %v", f.Name, err)
		}
		entries[f.Name] = data
	}

	bin, ok := entries[BinEntry]
	if !ok {
		return nil, malformed("missing %s", BinEntry)
	}
	sig, ok := entries[SigEntry]
	if !ok {
		return nil, malformed("missing %s", SigEntry)
	}

	if len(bin) < HeaderLength {
		return nil, malformed("%s truncated: %d bytes", BinEntry, len(bin))
	}
	if string(bin[:HeaderLength]) != Header {
		return nil, malformed("unexpected header %q", bin[:HeaderLength])
	}

	batch, err := unmarshalBatch(bin[HeaderLength:])
	if err != nil {
		return nil, malformed("parse %s: %v", BinEntry, err)
	}
	if batch.BatchNum < 1 || batch.BatchNum > batch.BatchSize {
		return nil, malformed("batch %d of %d", batch.BatchNum, batch.BatchSize)
	}

	sigs, err := unmarshalSignatureList(sig)
	if err != nil {
		return nil, malformed("parse %s: %v", SigEntry, err)
	}
	if len(sigs) == 0 {
		return nil, malformed("%s holds no signatures", SigEntry)
	}

	return &Archive{
		Header:     bin[:HeaderLength],
		Signed:     bin,
		Batch:      batch,
		Signatures: sigs,
	}, nil
}

func ReadFile(path string) (*Archive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
