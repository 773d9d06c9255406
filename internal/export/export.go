// Package export encodes diagnosis keys into signed export containers and
// decodes them back.
//
// A container is a ZIP archive holding export.bin (a fixed 16-byte header
// followed by the protobuf encoded batch) and export.sig (the protobuf
// encoded signature list). Every signature covers the whole of export.bin.
package export

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/signing"
)

const (
	// Header is "EK Export v1" right-padded with spaces to HeaderLength.
	Header       = "EK Export v1    "
	HeaderLength = 16

	BinEntry = "export.bin"
	SigEntry = "export.sig"

	DefaultMaxBatchSize = 10000
)

var (
	ErrMalformedExport  = errors.New("malformed export")
	ErrSignatureInvalid = errors.New("export signature invalid")
	ErrUnknownSigner    = errors.New("no signature from a known signer")
)

// Batch is one slice of an export. BatchNum is 1-based and BatchSize is the
// total number of batches in the export.
type Batch struct {
	StartTimestamp time.Time
	EndTimestamp   time.Time
	Region         string
	BatchNum       int32
	BatchSize      int32
	SignatureInfos []signing.Info
	Keys           []keys.DiagnosisKey
}

type Signature struct {
	Info      signing.Info
	BatchNum  int32
	BatchSize int32
	Signature []byte
}

// SignedExport is an encoded batch ready to be packaged. Bin is the exact
// export.bin content and Sig the exact export.sig content.
type SignedExport struct {
	Batch      Batch
	Bin        []byte
	Sig        []byte
	Signatures []Signature
}

// Signer is satisfied by *signing.Signer.
type Signer interface {
	Sign(ctx context.Context, data []byte) ([]byte, error)
	VerificationInfo() signing.Info
}

type Encoder struct {
	Signers []Signer
	// MaxBatchSize caps keys per batch. Zero means DefaultMaxBatchSize.
	MaxBatchSize int
}

func validRegion(r string) bool {
	if len(r) != 2 {
		return false
	}
	for _, c := range r {
		if c < 'A' || c > 'Z' {
			return false
		}
	}
	return true
}

// Encode partitions ks into contiguous batches of at most MaxBatchSize keys,
// in input order, and signs each one with every signer. No batches are
// produced for an empty key list. Timestamps are truncated to seconds.
func (e Encoder) Encode(ctx context.Context, ks []keys.DiagnosisKey, start, end time.Time, region string) ([]SignedExport, error) {
	maxSize := e.MaxBatchSize
	if maxSize == 0 {
		maxSize = DefaultMaxBatchSize
	}

	switch {
	case maxSize < 0:
		return nil, fmt.Errorf("max batch size %d must be positive", maxSize)
	case len(e.Signers) == 0:
		return nil, errors.New("no signers configured")
	case !validRegion(region):
		return nil, fmt.Errorf("region %q must be a 2-letter upper case code", region)
	case !end.After(start):
		return nil, fmt.Errorf("export window end %s is not after start %s", end, start)
	}

	for i, k := range ks {
		if k.IsZero() {
			return nil, fmt.Errorf("key %d: %w", i, keys.ErrInvalidKey)
		}
	}

	if len(ks) == 0 {
		return nil, nil
	}

	infos := make([]signing.Info, len(e.Signers))
	for i, s := range e.Signers {
		infos[i] = s.VerificationInfo()
	}

	total := (len(ks) + maxSize - 1) / maxSize
	out := make([]SignedExport, 0, total)

	for i := 0; i < total; i++ {
		lo := i * maxSize
		hi := min(lo+maxSize, len(ks))

		batch := Batch{
			StartTimestamp: start.UTC().Truncate(time.Second),
			EndTimestamp:   end.UTC().Truncate(time.Second),
			Region:         region,
			BatchNum:       int32(i + 1),
			BatchSize:      int32(total),
			SignatureInfos: infos,
			Keys:           append([]keys.DiagnosisKey(nil), ks[lo:hi]...),
		}

		signed, err := e.sign(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", batch.BatchNum, total, err)
		}
		out = append(out, signed)
	}

	return out, nil
}

func (e Encoder) sign(ctx context.Context, batch Batch) (SignedExport, error) {
	bin := append([]byte(Header), marshalBatch(&batch)...)

	sigs := make([]Signature, 0, len(e.Signers))
	for _, s := range e.Signers {
		sig, err := s.Sign(ctx, bin)
		if err != nil {
			return SignedExport{}, err
		}
		sigs = append(sigs, Signature{
			Info:      s.VerificationInfo(),
			BatchNum:  batch.BatchNum,
			BatchSize: batch.BatchSize,
			Signature: sig,
		})
	}

	return SignedExport{
		Batch:      batch,
		Bin:        bin,
		Sig:        marshalSignatureList(sigs),
		Signatures: sigs,
	}, nil
}
