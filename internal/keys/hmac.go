package keys

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
)

// HMAC computes the key-set binding presented for certification: HMAC-SHA256
// under secret over the sorted "base64.start.period.risk" lines joined by
// commas. The order of ks does not matter.
func HMAC(secret []byte, ks []DiagnosisKey) ([]byte, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("%w: empty hmac secret", ErrInvalidKey)
	}
	if len(ks) == 0 {
		return nil, fmt.Errorf("%w: no keys to bind", ErrInvalidKey)
	}

	lines := make([]string, 0, len(ks))
	for _, k := range ks {
		lines = append(lines, fmt.Sprintf("%s.%d.%d.%d", k.Base64(), k.rollingStart, k.rollingPeriod, k.transmissionRisk))
	}
	sort.Strings(lines)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(strings.Join(lines, ",")))
	return mac.Sum(nil), nil
}
