package api

import (
	"fmt"

	"github.com/dmitrijs2005/exposurekeys/internal/keys"
)

func FromKeys(ks []keys.DiagnosisKey) []ExposureKey {
	out := make([]ExposureKey, len(ks))
	for i, k := range ks {
		out[i] = ExposureKey{
			Key:              k.Base64(),
			IntervalNumber:   int32(k.RollingStart()),
			IntervalCount:    int32(k.RollingPeriod()),
			TransmissionRisk: int(k.TransmissionRisk()),
		}
	}
	return out
}

// ToKeys validates every wire key. The index of the first bad key is part
// of the error.
func ToKeys(eks []ExposureKey, opts ...keys.Option) ([]keys.DiagnosisKey, error) {
	out := make([]keys.DiagnosisKey, len(eks))
	for i, ek := range eks {
		if ek.IntervalNumber < 0 || ek.IntervalCount < 0 {
			return nil, fmt.Errorf("key %d: %w: negative interval", i, keys.ErrInvalidKey)
		}
		k, err := keys.FromBase64(ek.Key, uint32(ek.IntervalNumber), uint32(ek.IntervalCount), int32(ek.TransmissionRisk), opts...)
		if err != nil {
			return nil, fmt.Errorf("key %d: %w", i, err)
		}
		out[i] = k
	}
	return out, nil
}
