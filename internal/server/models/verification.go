// Package models defines the rows the key server persists.
package models

import "time"

// VerificationCode is a one-time code issued by a health authority. It is
// claimed once, in exchange for a long-term token.
type VerificationCode struct {
	ID          string
	Code        string
	TestType    string
	SymptomDate *time.Time
	ExpiresAt   time.Time
	Claimed     bool
	ClaimedAt   *time.Time
	CreatedAt   time.Time
}

// Expired reports whether the code can no longer be claimed at now.
func (c *VerificationCode) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}
