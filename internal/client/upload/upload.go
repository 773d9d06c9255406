// Package upload drives a diagnosis through the verification server and the
// key server: code -> long-term token -> certificate -> published keys.
//
// Each stage is a function from Upload to Upload. Stages never modify their
// input; they return a copy with more fields filled in, which the caller
// persists so an interrupted upload can resume where it stopped.
package upload

import (
	"crypto/hmac"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/keys"
)

// HMACKeyLength is the size of the random secret the key set HMAC is keyed with.
const HMACKeyLength = 16

type Upload struct {
	Keys             []keys.DiagnosisKey
	HMACKey          []byte
	VerificationCode string

	LongTermToken string
	Certificate   string
	CertifiedHMAC []byte
	RevisionToken string

	SymptomOnset *time.Time
	Traveler     bool
	TestType     string
}

// Verified reports whether the code has been exchanged for a long-term token.
func (u Upload) Verified() bool { return u.LongTermToken != "" }

// Certified reports whether the current key set has a certificate.
func (u Upload) Certified() bool { return u.Certificate != "" }

// WithKeys replaces the key set. A new key set needs a new certificate, so
// the certificate is dropped. The revision token is kept.
func (u Upload) WithKeys(ks []keys.DiagnosisKey) Upload {
	u.Keys = append([]keys.DiagnosisKey(nil), ks...)
	u.Certificate = ""
	u.CertifiedHMAC = nil
	return u
}

// CertifiesKeys reports whether the certificate was issued for the HMAC of
// the current key set under the current HMAC key.
func (u Upload) CertifiesKeys() bool {
	if !u.Certified() || len(u.CertifiedHMAC) == 0 {
		return false
	}
	mac, err := keys.HMAC(u.HMACKey, u.Keys)
	if err != nil {
		return false
	}
	return hmac.Equal(mac, u.CertifiedHMAC)
}
