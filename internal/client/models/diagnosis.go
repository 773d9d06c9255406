// Package models defines the records the client persists locally.
package models

import "time"

// SharedStatus tracks whether the keys of a diagnosis reached the key server.
type SharedStatus string

const (
	SharedStatusNotAttempted SharedStatus = "NOT_ATTEMPTED"
	SharedStatusShared       SharedStatus = "SHARED"
	SharedStatusNotShared    SharedStatus = "NOT_SHARED"
)

func (s SharedStatus) Valid() bool {
	switch s {
	case SharedStatusNotAttempted, SharedStatusShared, SharedStatusNotShared:
		return true
	}
	return false
}

// DiagnosisRecord holds everything needed to resume an interrupted upload.
// The pipeline creates and mutates records but never deletes them.
type DiagnosisRecord struct {
	ID               string
	VerificationCode string
	HMACKey          []byte

	LongTermToken string
	Certificate   string
	// CertifiedHMAC is the key set HMAC the certificate was issued for.
	CertifiedHMAC []byte
	RevisionToken string

	TestType     string
	SymptomOnset *time.Time
	Traveler     bool

	SharedStatus SharedStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Verified reports whether the verification code was exchanged for a token.
func (d *DiagnosisRecord) Verified() bool {
	return d.LongTermToken != ""
}
