package keys

import (
	"bytes"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T, fill byte, start uint32) DiagnosisKey {
	t.Helper()
	k, err := New(bytes.Repeat([]byte{fill}, KeyLength), start, DefaultRollingPeriod, 1)
	require.NoError(t, err)
	return k
}

func TestNew_Validation(t *testing.T) {
	data := make([]byte, KeyLength)

	tests := []struct {
		name    string
		data    []byte
		period  uint32
		risk    int32
		opts    []Option
		wantErr bool
	}{
		{name: "valid", data: data, period: 144, risk: 1},
		{name: "short key", data: data[:15], period: 144, risk: 1, wantErr: true},
		{name: "long key", data: append(data, 0), period: 144, risk: 1, wantErr: true},
		{name: "zero period", data: data, period: 0, risk: 1, wantErr: true},
		{name: "period over a day", data: data, period: 145, risk: 1, wantErr: true},
		{name: "risk too high", data: data, period: 144, risk: 9, wantErr: true},
		{name: "negative risk", data: data, period: 144, risk: -1, wantErr: true},
		{name: "bad report type", data: data, period: 144, risk: 1, opts: []Option{WithReportType(ReportType(42))}, wantErr: true},
		{name: "onset too far", data: data, period: 144, risk: 1, opts: []Option{WithDaysSinceOnset(15)}, wantErr: true},
		{name: "onset in range", data: data, period: 144, risk: 1, opts: []Option{WithDaysSinceOnset(-14)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.data, 2650000, tt.period, tt.risk, tt.opts...)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidKey)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestNew_CopiesInput(t *testing.T) {
	data := bytes.Repeat([]byte{7}, KeyLength)
	k, err := New(data, 1, 144, 0)
	require.NoError(t, err)

	data[0] = 0xFF
	assert.Equal(t, byte(7), k.KeyData()[0], "key must not alias caller memory")

	out := k.KeyData()
	out[1] = 0xFF
	assert.Equal(t, byte(7), k.KeyData()[1], "accessor must return a copy")
}

func TestOptionalFields(t *testing.T) {
	k, err := New(make([]byte, KeyLength), 10, 144, 2,
		WithReportType(ReportTypeConfirmedTest), WithDaysSinceOnset(-3))
	require.NoError(t, err)

	assert.Equal(t, ReportTypeConfirmedTest, k.ReportType())
	assert.True(t, k.HasDaysSinceOnset())
	assert.Equal(t, int32(-3), k.DaysSinceOnset())
	assert.Equal(t, uint32(154), k.RollingEnd())

	plain := mustKey(t, 1, 10)
	assert.Equal(t, ReportTypeUnknown, plain.ReportType())
	assert.False(t, plain.HasDaysSinceOnset())
}

func TestFromBase64(t *testing.T) {
	raw := bytes.Repeat([]byte{3}, KeyLength)
	k, err := FromBase64(base64.StdEncoding.EncodeToString(raw), 5, 144, 0)
	require.NoError(t, err)
	assert.Equal(t, raw, k.KeyData())
	assert.Equal(t, base64.StdEncoding.EncodeToString(raw), k.Base64())

	_, err = FromBase64("!!!", 5, 144, 0)
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestParseReportType(t *testing.T) {
	r, err := ParseReportType("likely")
	require.NoError(t, err)
	assert.Equal(t, ReportTypeConfirmedClinical, r)
	assert.Equal(t, "likely", r.String())

	_, err = ParseReportType("maybe")
	assert.Error(t, err)
}

func TestHMAC_OrderIndependentAndKeyed(t *testing.T) {
	a, b := mustKey(t, 1, 100), mustKey(t, 2, 244)
	secret := []byte("0123456789abcdef")

	h1, err := HMAC(secret, []DiagnosisKey{a, b})
	require.NoError(t, err)
	h2, err := HMAC(secret, []DiagnosisKey{b, a})
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	h3, err := HMAC([]byte("another secret.."), []DiagnosisKey{a, b})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3)

	h4, err := HMAC(secret, []DiagnosisKey{a})
	require.NoError(t, err)
	assert.NotEqual(t, h1, h4)

	_, err = HMAC(nil, []DiagnosisKey{a})
	assert.Error(t, err)
	_, err = HMAC(secret, nil)
	assert.Error(t, err)
}
