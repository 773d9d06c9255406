package services

import "errors"

// Refusals of the verification server.
var (
	ErrCodeNotFound        = errors.New("verification code not found")
	ErrCodeAlreadyUsed     = errors.New("verification code already used")
	ErrCodeExpired         = errors.New("verification code expired")
	ErrUnsupportedTestType = errors.New("unsupported test type")
	ErrMissingDate         = errors.New("symptom date required")
	ErrInvalidDate         = errors.New("symptom date out of range")
	ErrInvalidHMAC         = errors.New("key set hmac invalid")
)

// Refusals of the key server.
var (
	ErrKeyValidation        = errors.New("key validation failed")
	ErrBadCertificate       = errors.New("bad certificate")
	ErrMissingRevisionToken = errors.New("revision token required")
	ErrInvalidRevisionToken = errors.New("revision token invalid")
)
