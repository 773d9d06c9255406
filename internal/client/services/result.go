// Package services implements the user-facing client operations on top of
// the upload controller, the local database and the export ingestion
// pipeline. Operations report a tagged Result instead of bare errors so the
// presentation layer can branch on the outcome.
package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/exposurekeys/internal/client/client"
	"github.com/dmitrijs2005/exposurekeys/internal/client/models"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
)

type Outcome string

const (
	OutcomeOK                  Outcome = "ok"
	OutcomeAlreadyVerified     Outcome = "already_verified"
	OutcomeNoInternet          Outcome = "no_internet"
	OutcomeVerificationFailure Outcome = "verification_failure"
	OutcomeRateLimited         Outcome = "rate_limited"
	OutcomeServerError         Outcome = "server_error"
	OutcomeRejected            Outcome = "rejected"
	OutcomeAlreadyShared       Outcome = "already_shared"
	OutcomeFailed              Outcome = "failed"
)

// Result is the outcome of a diagnosis operation. Record is the record as
// persisted after the operation, when there is one. Reason carries the
// server's error code when it gave one.
type Result struct {
	Outcome Outcome
	Record  *models.DiagnosisRecord
	Err     error
	Reason  string
}

func (r Result) OK() bool { return r.Outcome == OutcomeOK }

func classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, common.ErrNoInternet), errors.Is(err, context.DeadlineExceeded):
		return OutcomeNoInternet
	case errors.Is(err, common.ErrVerificationFailed):
		return OutcomeVerificationFailure
	case errors.Is(err, common.ErrRateLimited):
		return OutcomeRateLimited
	case errors.Is(err, common.ErrServerError), errors.Is(err, common.ErrVerificationServer):
		return OutcomeServerError
	case errors.Is(err, common.ErrUploadRejected):
		return OutcomeRejected
	case errors.Is(err, common.ErrAlreadyShared):
		return OutcomeAlreadyShared
	}
	return OutcomeFailed
}

func failure(rec *models.DiagnosisRecord, err error) Result {
	res := Result{Outcome: classify(err), Record: rec, Err: err}
	var se *client.ServerError
	if errors.As(err, &se) {
		res.Reason = se.Code
	}
	return res
}
