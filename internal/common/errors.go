// Package common defines sentinel errors shared by the client and server
// layers. Callers should use errors.Is to match these values.
package common

import (
	"context"
	"errors"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("already exists")

	// Service-level errors.
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Transient conditions: the caller may retry later.
	ErrNoInternet         = errors.New("no internet connection")
	ErrVerificationServer = errors.New("verification server failure")
	ErrRateLimited        = errors.New("rate limited")
	ErrServerError        = errors.New("key server error")

	// Terminal conditions surfaced to the user.
	ErrVerificationFailed = errors.New("verification failed")
	ErrUploadRejected     = errors.New("upload rejected")
	ErrAlreadyShared      = errors.New("diagnosis already shared")
	ErrMissingToken       = errors.New("long-term token missing")
	ErrMissingCertificate = errors.New("certificate missing")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// IsRetriable reports whether err is a transient failure that a scheduler may
// retry with backoff. Deadline expiry counts as transient.
func IsRetriable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrNoInternet),
		errors.Is(err, ErrVerificationServer),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrServerError),
		errors.Is(err, context.DeadlineExceeded):
		return true
	}
	return false
}
