package upload

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/client/client"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/timex"
)

// Stage is one step of the upload protocol.
type Stage func(ctx context.Context, u Upload) (Upload, error)

// AcceptedTestTypes are the diagnosis kinds this client can share.
var AcceptedTestTypes = []string{
	keys.ReportTypeConfirmedTest.String(),
	keys.ReportTypeConfirmedClinical.String(),
}

type Controller struct {
	verification      client.VerificationClient
	keyServer         client.KeyServerClient
	healthAuthorityID string
	log               logging.Logger
}

func NewController(v client.VerificationClient, k client.KeyServerClient, healthAuthorityID string, log logging.Logger) *Controller {
	return &Controller{
		verification:      v,
		keyServer:         k,
		healthAuthorityID: healthAuthorityID,
		log:               log.With("module", "upload"),
	}
}

// SubmitCode exchanges the verification code for a long-term token. A
// symptom onset date supplied by the server is used only when the upload
// has none of its own.
func (c *Controller) SubmitCode(ctx context.Context, u Upload) (Upload, error) {
	if u.VerificationCode == "" {
		return u, fmt.Errorf("%w: empty verification code", common.ErrVerificationFailed)
	}

	resp, err := c.verification.VerifyCode(ctx, &api.VerifyCodeRequest{
		Code:        u.VerificationCode,
		AcceptTypes: AcceptedTestTypes,
	})
	if err != nil {
		c.log.Warn(ctx, "code verification failed", "error", err)
		return u, err
	}

	u.LongTermToken = resp.VerificationToken
	u.TestType = resp.TestType

	if u.SymptomOnset == nil && resp.SymptomDate != "" {
		onset, err := time.Parse(api.DateFormat, resp.SymptomDate)
		if err != nil {
			c.log.Warn(ctx, "ignoring unparseable symptom date", "date", resp.SymptomDate)
		} else {
			u.SymptomOnset = &onset
		}
	}

	c.log.Info(ctx, "verification code accepted", "test_type", u.TestType)
	return u, nil
}

// SubmitKeysForCert obtains a certificate binding the key set to the
// verified diagnosis. It does nothing when the upload already has one.
func (c *Controller) SubmitKeysForCert(ctx context.Context, u Upload) (Upload, error) {
	if u.Certified() {
		return u, nil
	}
	if !u.Verified() {
		return u, common.ErrMissingToken
	}

	if len(u.HMACKey) == 0 {
		u.HMACKey = common.GenerateRandByteArray(HMACKeyLength)
	}

	mac, err := keys.HMAC(u.HMACKey, u.Keys)
	if err != nil {
		return u, err
	}

	resp, err := c.verification.Certificate(ctx, &api.VerificationCertificateRequest{
		VerificationToken: u.LongTermToken,
		ExposureKeyHMAC:   base64.StdEncoding.EncodeToString(mac),
	})
	if err != nil {
		c.log.Warn(ctx, "certificate request failed", "error", err)
		return u, err
	}

	u.Certificate = resp.Certificate
	u.CertifiedHMAC = mac
	c.log.Info(ctx, "key set certified", "keys", len(u.Keys))
	return u, nil
}

// Publish sends the certified keys to the key server. The revision token is
// attached only when one is known; the returned upload carries the newest
// token the server issued.
func (c *Controller) Publish(ctx context.Context, u Upload) (Upload, error) {
	if !u.Certified() {
		return u, common.ErrMissingCertificate
	}

	req := &api.Publish{
		Keys:                api.FromKeys(u.Keys),
		HealthAuthorityID:   c.healthAuthorityID,
		VerificationPayload: u.Certificate,
		HMACKey:             base64.StdEncoding.EncodeToString(u.HMACKey),
		Traveler:            u.Traveler,
		RevisionToken:       u.RevisionToken,
	}
	if u.SymptomOnset != nil {
		req.SymptomOnsetInterval = int32(timex.IntervalNumber(*u.SymptomOnset))
	}

	resp, err := c.keyServer.Publish(ctx, req)
	if err != nil {
		c.log.Warn(ctx, "publish failed", "error", err, "retriable", common.IsRetriable(err))
		return u, err
	}

	if resp.RevisionToken != "" {
		u.RevisionToken = resp.RevisionToken
	}
	c.log.Info(ctx, "keys published", "inserted", resp.InsertedExposures)
	return u, nil
}

// Chain runs stages in order and stops at the first error, returning the
// upload as it stood after the last successful stage.
func Chain(stages ...Stage) Stage {
	return func(ctx context.Context, u Upload) (Upload, error) {
		for _, s := range stages {
			next, err := s(ctx, u)
			if err != nil {
				return u, err
			}
			u = next
		}
		return u, nil
	}
}

// Run takes the upload through every stage it has not completed yet.
func (c *Controller) Run(ctx context.Context, u Upload) (Upload, error) {
	var stages []Stage
	if !u.Verified() {
		stages = append(stages, c.SubmitCode)
	}
	stages = append(stages, c.SubmitKeysForCert, c.Publish)
	return Chain(stages...)(ctx, u)
}
