package httpapi

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/server/services"
)

// errorBody matches the error fields of every verification response.
type errorBody struct {
	Error     string `json:"error,omitempty"`
	ErrorCode string `json:"errorCode,omitempty"`
}

type mapping struct {
	err    error
	status int
	code   string
}

var verificationErrors = []mapping{
	{services.ErrCodeNotFound, http.StatusBadRequest, api.ErrCodeNotFound},
	{services.ErrCodeAlreadyUsed, http.StatusBadRequest, api.ErrCodeAlreadyUsed},
	{services.ErrCodeExpired, http.StatusBadRequest, api.ErrCodeExpired},
	{services.ErrUnsupportedTestType, http.StatusBadRequest, api.ErrUnsupportedTestType},
	{services.ErrMissingDate, http.StatusBadRequest, api.ErrMissingDate},
	{services.ErrInvalidDate, http.StatusBadRequest, api.ErrInvalidDate},
	{services.ErrInvalidHMAC, http.StatusBadRequest, api.ErrHMACInvalid},
	{common.ErrTokenExpired, http.StatusBadRequest, api.ErrTokenExpired},
	{common.ErrInvalidToken, http.StatusBadRequest, api.ErrTokenInvalid},
}

var publishErrors = []mapping{
	{services.ErrKeyValidation, http.StatusBadRequest, api.ErrKeyValidation},
	{services.ErrBadCertificate, http.StatusBadRequest, api.ErrBadCertificate},
	{services.ErrMissingRevisionToken, http.StatusBadRequest, api.ErrMissingRevisionToken},
	{services.ErrInvalidRevisionToken, http.StatusBadRequest, api.ErrInvalidRevisionToken},
}

// classify picks the first mapping err matches. Anything unknown is an
// internal error.
func classify(err error, table []mapping) (int, string) {
	for _, m := range table {
		if errors.Is(err, m.err) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, api.ErrInternal
}
