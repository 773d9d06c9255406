// Package keys defines the diagnosis key value type shared by the export
// codec, the upload pipeline and the key server.
package keys

import (
	"encoding/base64"
	"errors"
	"fmt"
)

const (
	// KeyLength is the exact size of diagnosis key material.
	KeyLength = 16

	// DefaultRollingPeriod is one day of 10-minute intervals.
	DefaultRollingPeriod uint32 = 144

	MaxTransmissionRisk = 8

	MinDaysSinceOnset = -14
	MaxDaysSinceOnset = 14
)

var ErrInvalidKey = errors.New("invalid diagnosis key")

// ReportType classifies how a diagnosis was established. ReportTypeUnknown
// doubles as "not set".
type ReportType int32

const (
	ReportTypeUnknown ReportType = iota
	ReportTypeConfirmedTest
	ReportTypeConfirmedClinical
	ReportTypeSelfReport
	ReportTypeRecursive
	ReportTypeRevoked
)

var reportTypeNames = map[ReportType]string{
	ReportTypeUnknown:           "unknown",
	ReportTypeConfirmedTest:     "confirmed",
	ReportTypeConfirmedClinical: "likely",
	ReportTypeSelfReport:        "self_report",
	ReportTypeRecursive:         "recursive",
	ReportTypeRevoked:           "revoked",
}

func (r ReportType) String() string {
	if s, ok := reportTypeNames[r]; ok {
		return s
	}
	return fmt.Sprintf("report_type(%d)", int32(r))
}

func (r ReportType) Valid() bool {
	return r >= ReportTypeUnknown && r <= ReportTypeRevoked
}

// ParseReportType maps a test type name ("confirmed", "likely", ...) back to
// a ReportType.
func ParseReportType(s string) (ReportType, error) {
	for k, v := range reportTypeNames {
		if v == s {
			return k, nil
		}
	}
	return ReportTypeUnknown, fmt.Errorf("%w: unknown report type %q", ErrInvalidKey, s)
}

// DiagnosisKey is immutable once built by New.
type DiagnosisKey struct {
	data              [KeyLength]byte
	rollingStart      uint32
	rollingPeriod     uint32
	transmissionRisk  int32
	reportType        ReportType
	daysSinceOnset    int32
	hasDaysSinceOnset bool
}

// Option sets an optional DiagnosisKey field.
type Option func(*DiagnosisKey)

func WithReportType(r ReportType) Option {
	return func(k *DiagnosisKey) { k.reportType = r }
}

func WithDaysSinceOnset(days int32) Option {
	return func(k *DiagnosisKey) {
		k.daysSinceOnset = days
		k.hasDaysSinceOnset = true
	}
}

// New validates and builds a key. Key data must be exactly KeyLength bytes
// and rollingPeriod must be in (0, 144].
func New(data []byte, rollingStart, rollingPeriod uint32, transmissionRisk int32, opts ...Option) (DiagnosisKey, error) {
	var k DiagnosisKey

	if len(data) != KeyLength {
		return k, fmt.Errorf("%w: key data length %d, want %d", ErrInvalidKey, len(data), KeyLength)
	}
	if rollingPeriod == 0 || rollingPeriod > DefaultRollingPeriod {
		return k, fmt.Errorf("%w: rolling period %d out of range", ErrInvalidKey, rollingPeriod)
	}
	if transmissionRisk < 0 || transmissionRisk > MaxTransmissionRisk {
		return k, fmt.Errorf("%w: transmission risk %d out of range", ErrInvalidKey, transmissionRisk)
	}
	// Interval numbers travel as int32 on the wire.
	if rollingStart > 1<<31-1 {
		return k, fmt.Errorf("%w: rolling start %d out of range", ErrInvalidKey, rollingStart)
	}

	copy(k.data[:], data)
	k.rollingStart = rollingStart
	k.rollingPeriod = rollingPeriod
	k.transmissionRisk = transmissionRisk

	for _, opt := range opts {
		opt(&k)
	}

	if !k.reportType.Valid() {
		return DiagnosisKey{}, fmt.Errorf("%w: report type %d", ErrInvalidKey, k.reportType)
	}
	if k.hasDaysSinceOnset && (k.daysSinceOnset < MinDaysSinceOnset || k.daysSinceOnset > MaxDaysSinceOnset) {
		return DiagnosisKey{}, fmt.Errorf("%w: days since onset %d out of range", ErrInvalidKey, k.daysSinceOnset)
	}

	return k, nil
}

// FromBase64 is New for key data in standard base64, as the APIs carry it.
func FromBase64(data string, rollingStart, rollingPeriod uint32, transmissionRisk int32, opts ...Option) (DiagnosisKey, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return DiagnosisKey{}, fmt.Errorf("%w: key data is not base64: %v", ErrInvalidKey, err)
	}
	return New(raw, rollingStart, rollingPeriod, transmissionRisk, opts...)
}

// KeyData returns a copy of the key material.
func (k DiagnosisKey) KeyData() []byte {
	out := make([]byte, KeyLength)
	copy(out, k.data[:])
	return out
}

func (k DiagnosisKey) Base64() string {
	return base64.StdEncoding.EncodeToString(k.data[:])
}

func (k DiagnosisKey) RollingStart() uint32    { return k.rollingStart }
func (k DiagnosisKey) RollingPeriod() uint32   { return k.rollingPeriod }
func (k DiagnosisKey) TransmissionRisk() int32 { return k.transmissionRisk }
func (k DiagnosisKey) ReportType() ReportType  { return k.reportType }
func (k DiagnosisKey) IsZero() bool            { return k.rollingPeriod == 0 }
func (k DiagnosisKey) RollingEnd() uint32      { return k.rollingStart + k.rollingPeriod }
func (k DiagnosisKey) HasDaysSinceOnset() bool { return k.hasDaysSinceOnset }
func (k DiagnosisKey) DaysSinceOnset() int32   { return k.daysSinceOnset }
