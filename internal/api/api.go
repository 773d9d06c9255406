// Package api defines the JSON bodies exchanged between the client and the
// verification and key servers.
package api

// Verification server error codes, returned in ErrorCode.
const (
	ErrCodeInvalid         = "code_invalid"
	ErrCodeNotFound        = "code_not_found"
	ErrCodeAlreadyUsed     = "code_already_used"
	ErrCodeExpired         = "code_expired"
	ErrTokenInvalid        = "token_invalid"
	ErrTokenExpired        = "token_expired"
	ErrHMACInvalid         = "hmac_invalid"
	ErrUnsupportedTestType = "unsupported_test_type"
	ErrMissingDate         = "missing_date"
	ErrInvalidDate         = "invalid_date"
	ErrInternal            = "internal_server_error"
	ErrUnauthorized        = "unauthorized"
	ErrBadRequest          = "bad_request"
)

// Key server error codes, returned in PublishResponse.Code.
const (
	ErrMissingRevisionToken = "missing_revision_token"
	ErrInvalidRevisionToken = "invalid_revision_token"
	ErrKeyValidation        = "key_validation_failed"
	ErrBadCertificate       = "bad_certificate"
	ErrPartialFailure       = "partial_failure"
	ErrRateLimited          = "rate_limited"
)

// Paths served by cmd/server.
const (
	PathIssue       = "/api/issue"
	PathVerify      = "/api/verify"
	PathCertificate = "/api/certificate"
	PathPublish     = "/v1/publish"
	PathHealth      = "/health"
)

// IndexFile is the name of the per-region export index, relative to the
// region's directory.
const IndexFile = "index.txt"

// HealthResponse is returned by PathHealth.
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// DateFormat is used for symptom and test dates on the wire.
const DateFormat = "2006-01-02"

type IssueCodeRequest struct {
	TestType    string `json:"testType"`
	SymptomDate string `json:"symptomDate,omitempty"`
}

type IssueCodeResponse struct {
	Code                   string `json:"code,omitempty"`
	ExpiresAtTimestamp     int64  `json:"expiresAtTimestamp,omitempty"`
	LongExpiresAtTimestamp int64  `json:"longExpiresAtTimestamp,omitempty"`
	Error                  string `json:"error,omitempty"`
	ErrorCode              string `json:"errorCode,omitempty"`
}

type VerifyCodeRequest struct {
	Code        string   `json:"code"`
	AcceptTypes []string `json:"accept,omitempty"`
}

type VerifyCodeResponse struct {
	TestType          string `json:"testtype,omitempty"`
	SymptomDate       string `json:"symptomDate,omitempty"`
	VerificationToken string `json:"token,omitempty"`
	Error             string `json:"error,omitempty"`
	ErrorCode         string `json:"errorCode,omitempty"`
}

type VerificationCertificateRequest struct {
	VerificationToken string `json:"token"`
	ExposureKeyHMAC   string `json:"ekeyhmac"`
}

type VerificationCertificateResponse struct {
	Certificate string `json:"certificate,omitempty"`
	Error       string `json:"error,omitempty"`
	ErrorCode   string `json:"errorCode,omitempty"`
}

// ExposureKey is one diagnosis key as sent to the key server.
type ExposureKey struct {
	Key              string `json:"key"`
	IntervalNumber   int32  `json:"rollingStartNumber"`
	IntervalCount    int32  `json:"rollingPeriod"`
	TransmissionRisk int    `json:"transmissionRisk"`
}

type Publish struct {
	Keys                 []ExposureKey `json:"temporaryExposureKeys"`
	HealthAuthorityID    string        `json:"healthAuthorityID"`
	VerificationPayload  string        `json:"verificationPayload"`
	HMACKey              string        `json:"hmackey"`
	SymptomOnsetInterval int32         `json:"symptomOnsetInterval,omitempty"`
	Traveler             bool          `json:"traveler,omitempty"`
	RevisionToken        string        `json:"revisionToken,omitempty"`
}

type PublishResponse struct {
	RevisionToken     string `json:"revisionToken,omitempty"`
	InsertedExposures int    `json:"insertedExposures,omitempty"`
	ErrorMessage      string `json:"error,omitempty"`
	Code              string `json:"code,omitempty"`
}
