package export

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/signing"
)

// Field numbers of the TemporaryExposureKeyExport message family.
const (
	exportStartTimestamp protowire.Number = 1
	exportEndTimestamp   protowire.Number = 2
	exportRegion         protowire.Number = 3
	exportBatchNum       protowire.Number = 4
	exportBatchSize      protowire.Number = 5
	exportSignatureInfos protowire.Number = 6
	exportKeys           protowire.Number = 7

	infoKeyVersion protowire.Number = 3
	infoKeyID      protowire.Number = 4
	infoAlgorithm  protowire.Number = 5

	keyData             protowire.Number = 1
	keyTransmissionRisk protowire.Number = 2
	keyRollingStart     protowire.Number = 3
	keyRollingPeriod    protowire.Number = 4
	keyReportType       protowire.Number = 5
	keyDaysSinceOnset   protowire.Number = 6

	listSignatures protowire.Number = 1

	sigInfo      protowire.Number = 1
	sigBatchNum  protowire.Number = 2
	sigBatchSize protowire.Number = 3
	sigBytes     protowire.Number = 4
)

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(int64(v)))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func marshalInfo(info signing.Info) []byte {
	var b []byte
	b = appendString(b, infoKeyVersion, info.KeyVersion)
	b = appendString(b, infoKeyID, info.KeyID)
	b = appendString(b, infoAlgorithm, info.AlgorithmOID)
	return b
}

func marshalKey(k keys.DiagnosisKey) []byte {
	var b []byte
	b = protowire.AppendTag(b, keyData, protowire.BytesType)
	b = protowire.AppendBytes(b, k.KeyData())
	b = appendInt32(b, keyTransmissionRisk, k.TransmissionRisk())
	b = appendInt32(b, keyRollingStart, int32(k.RollingStart()))
	b = appendInt32(b, keyRollingPeriod, int32(k.RollingPeriod()))
	if k.ReportType() != keys.ReportTypeUnknown {
		b = appendInt32(b, keyReportType, int32(k.ReportType()))
	}
	if k.HasDaysSinceOnset() {
		b = protowire.AppendTag(b, keyDaysSinceOnset, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(k.DaysSinceOnset())))
	}
	return b
}

func marshalBatch(batch *Batch) []byte {
	var b []byte
	b = protowire.AppendTag(b, exportStartTimestamp, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64(batch.StartTimestamp.Unix()))
	b = protowire.AppendTag(b, exportEndTimestamp, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64(batch.EndTimestamp.Unix()))
	b = appendString(b, exportRegion, batch.Region)
	b = appendInt32(b, exportBatchNum, batch.BatchNum)
	b = appendInt32(b, exportBatchSize, batch.BatchSize)
	for _, info := range batch.SignatureInfos {
		b = appendMessage(b, exportSignatureInfos, marshalInfo(info))
	}
	for _, k := range batch.Keys {
		b = appendMessage(b, exportKeys, marshalKey(k))
	}
	return b
}

func marshalSignatureList(sigs []Signature) []byte {
	var b []byte
	for _, s := range sigs {
		var m []byte
		m = appendMessage(m, sigInfo, marshalInfo(s.Info))
		m = appendInt32(m, sigBatchNum, s.BatchNum)
		m = appendInt32(m, sigBatchSize, s.BatchSize)
		m = protowire.AppendTag(m, sigBytes, protowire.BytesType)
		m = protowire.AppendBytes(m, s.Signature)
		b = appendMessage(b, listSignatures, m)
	}
	return b
}

// field is one decoded tag/value pair. Only the member matching typ is set.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	fixed  uint64
	bytes  []byte
}

// walk calls fn for every field of msg. Groups and fixed32 values are
// skipped.
func walk(msg []byte, fn func(f field) error) error {
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return protowire.ParseError(n)
		}
		msg = msg[n:]

		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(msg)
		case protowire.Fixed64Type:
			f.fixed, n = protowire.ConsumeFixed64(msg)
		case protowire.BytesType:
			f.bytes, n = protowire.ConsumeBytes(msg)
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
			if n >= 0 {
				msg = msg[n:]
				continue
			}
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		msg = msg[n:]

		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

// int32 decodes an int32 varint. Negative values are sign-extended to 64
// bits on the wire, so anything outside the int32 range is malformed.
func (f field) int32() (int32, error) {
	v := int64(f.varint)
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("field %d: varint %d overflows int32", f.num, f.varint)
	}
	return int32(v), nil
}

// sint32 decodes a zigzag encoded sint32.
func (f field) sint32() (int32, error) {
	v := protowire.DecodeZigZag(f.varint)
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("field %d: zigzag value %d overflows int32", f.num, v)
	}
	return int32(v), nil
}

func wrongType(f field) error {
	return fmt.Errorf("field %d: unexpected wire type %d", f.num, f.typ)
}

func unmarshalInfo(msg []byte) (signing.Info, error) {
	var info signing.Info
	err := walk(msg, func(f field) error {
		switch f.num {
		case infoKeyVersion, infoKeyID, infoAlgorithm:
			if f.typ != protowire.BytesType {
				return wrongType(f)
			}
		}
		switch f.num {
		case infoKeyVersion:
			info.KeyVersion = string(f.bytes)
		case infoKeyID:
			info.KeyID = string(f.bytes)
		case infoAlgorithm:
			info.AlgorithmOID = string(f.bytes)
		}
		return nil
	})
	return info, err
}

func unmarshalKey(msg []byte) (keys.DiagnosisKey, error) {
	var (
		data                     []byte
		risk, start, period      int32
		opts                     []keys.Option
		sawData, sawStart, sawRP bool
	)

	err := walk(msg, func(f field) error {
		if f.num == keyData {
			if f.typ != protowire.BytesType {
				return wrongType(f)
			}
			data, sawData = f.bytes, true
			return nil
		}
		if f.num >= keyTransmissionRisk && f.num <= keyDaysSinceOnset && f.typ != protowire.VarintType {
			return wrongType(f)
		}
		var err error
		switch f.num {
		case keyTransmissionRisk:
			risk, err = f.int32()
		case keyRollingStart:
			start, err = f.int32()
			sawStart = true
		case keyRollingPeriod:
			period, err = f.int32()
			sawRP = true
		case keyReportType:
			var rt int32
			if rt, err = f.int32(); err == nil {
				opts = append(opts, keys.WithReportType(keys.ReportType(rt)))
			}
		case keyDaysSinceOnset:
			var days int32
			if days, err = f.sint32(); err == nil {
				opts = append(opts, keys.WithDaysSinceOnset(days))
			}
		}
		return err
	})
	if err != nil {
		return keys.DiagnosisKey{}, err
	}

	if !sawData || !sawStart {
		return keys.DiagnosisKey{}, fmt.Errorf("key is missing required fields")
	}
	if !sawRP {
		period = int32(keys.DefaultRollingPeriod)
	}
	if start < 0 || period < 0 {
		return keys.DiagnosisKey{}, fmt.Errorf("negative interval in key")
	}

	return keys.New(data, uint32(start), uint32(period), risk, opts...)
}

func unmarshalBatch(msg []byte) (Batch, error) {
	var batch Batch
	err := walk(msg, func(f field) error {
		switch f.num {
		case exportStartTimestamp, exportEndTimestamp:
			if f.typ != protowire.Fixed64Type {
				return wrongType(f)
			}
		case exportRegion, exportSignatureInfos, exportKeys:
			if f.typ != protowire.BytesType {
				return wrongType(f)
			}
		case exportBatchNum, exportBatchSize:
			if f.typ != protowire.VarintType {
				return wrongType(f)
			}
		}

		switch f.num {
		case exportStartTimestamp:
			batch.StartTimestamp = time.Unix(int64(f.fixed), 0).UTC()
		case exportEndTimestamp:
			batch.EndTimestamp = time.Unix(int64(f.fixed), 0).UTC()
		case exportRegion:
			batch.Region = string(f.bytes)
		case exportBatchNum:
			n, err := f.int32()
			if err != nil {
				return err
			}
			batch.BatchNum = n
		case exportBatchSize:
			n, err := f.int32()
			if err != nil {
				return err
			}
			batch.BatchSize = n
		case exportSignatureInfos:
			info, err := unmarshalInfo(f.bytes)
			if err != nil {
				return fmt.Errorf("signature info: %w", err)
			}
			batch.SignatureInfos = append(batch.SignatureInfos, info)
		case exportKeys:
			k, err := unmarshalKey(f.bytes)
			if err != nil {
				return fmt.Errorf("key %d: %w", len(batch.Keys), err)
			}
			batch.Keys = append(batch.Keys, k)
		}
		return nil
	})
	return batch, err
}

func unmarshalSignature(msg []byte) (Signature, error) {
	var s Signature
	err := walk(msg, func(f field) error {
		switch f.num {
		case sigInfo, sigBytes:
			if f.typ != protowire.BytesType {
				return wrongType(f)
			}
		case sigBatchNum, sigBatchSize:
			if f.typ != protowire.VarintType {
				return wrongType(f)
			}
		}

		switch f.num {
		case sigInfo:
			info, err := unmarshalInfo(f.bytes)
			if err != nil {
				return err
			}
			s.Info = info
		case sigBatchNum:
			n, err := f.int32()
			if err != nil {
				return err
			}
			s.BatchNum = n
		case sigBatchSize:
			n, err := f.int32()
			if err != nil {
				return err
			}
			s.BatchSize = n
		case sigBytes:
			s.Signature = append([]byte(nil), f.bytes...)
		}
		return nil
	})
	return s, err
}

func unmarshalSignatureList(msg []byte) ([]Signature, error) {
	var sigs []Signature
	err := walk(msg, func(f field) error {
		if f.num != listSignatures {
			return nil
		}
		if f.typ != protowire.BytesType {
			return wrongType(f)
		}
		s, err := unmarshalSignature(f.bytes)
		if err != nil {
			return fmt.Errorf("signature %d: %w", len(sigs), err)
		}
		sigs = append(sigs, s)
		return nil
	})
	return sigs, err
}
