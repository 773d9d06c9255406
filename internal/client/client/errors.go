package client

import (
	"fmt"
	"net/http"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
)

// ServerError is a refusal or failure reported by a server. It unwraps to
// the matching sentinel from internal/common.
type ServerError struct {
	Sentinel error
	Status   int
	Code     string
	Message  string
}

func (e *ServerError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%v: %s (%s, status %d)", e.Sentinel, msg, e.Code, e.Status)
	}
	return fmt.Sprintf("%v: %s (status %d)", e.Sentinel, msg, e.Status)
}

func (e *ServerError) Unwrap() error {
	return e.Sentinel
}

// mapVerificationError classifies a non-2xx verification server answer.
// Throttling and 5xx are the server's problem; any other status means the
// code or token was refused.
func mapVerificationError(status int, code, message string) error {
	sentinel := common.ErrVerificationFailed
	if status == http.StatusTooManyRequests || status >= 500 {
		sentinel = common.ErrVerificationServer
	}
	return &ServerError{Sentinel: sentinel, Status: status, Code: code, Message: message}
}

// mapPublishError classifies a non-2xx key server answer.
func mapPublishError(status int, code, message string) error {
	sentinel := common.ErrUploadRejected
	switch {
	case status == http.StatusTooManyRequests || code == api.ErrRateLimited:
		sentinel = common.ErrRateLimited
	case status >= 500:
		sentinel = common.ErrServerError
	}
	return &ServerError{Sentinel: sentinel, Status: status, Code: code, Message: message}
}
