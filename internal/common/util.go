package common

import (
	"crypto/rand"
	"encoding/base64"
)

// GenerateRandByteArray returns size bytes read from crypto/rand. It panics
// if the system random source fails, which leaves nothing sensible to do.
func GenerateRandByteArray(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// MakeRandBase64String returns size random bytes encoded as standard base64.
func MakeRandBase64String(size int) string {
	return base64.StdEncoding.EncodeToString(GenerateRandByteArray(size))
}

// WipeByteArray overwrites b with zeros. Used for passphrases and derived keys.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
