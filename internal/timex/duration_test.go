package timex

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    time.Duration
		wantErr bool
	}{
		{name: "string", in: `"4h"`, want: 4 * time.Hour},
		{name: "nanoseconds", in: `1000000000`, want: time.Second},
		{name: "bad string", in: `"soon"`, wantErr: true},
		{name: "bool", in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Duration
			err := json.Unmarshal([]byte(tt.in), &d)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, d.Duration)
		})
	}
}

func TestDuration_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(Duration{30 * time.Minute})
	require.NoError(t, err)
	assert.Equal(t, `"30m0s"`, string(b))
}

func TestIntervalNumber_RoundTrip(t *testing.T) {
	ts := time.Date(2020, 5, 20, 18, 47, 0, 0, time.UTC)
	n := IntervalNumber(ts)

	assert.Equal(t, uint32(2650000), n)
	assert.Equal(t, time.Date(2020, 5, 20, 18, 40, 0, 0, time.UTC), IntervalStart(n))
	assert.Equal(t, time.Date(2020, 5, 20, 0, 0, 0, 0, time.UTC), TruncateDay(ts))
}
