package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/exposurekeys/internal/client/models"
	"github.com/dmitrijs2005/exposurekeys/internal/client/repositories/diagnoses"
	"github.com/dmitrijs2005/exposurekeys/internal/client/scheduler"
	"github.com/dmitrijs2005/exposurekeys/internal/client/upload"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

// Uploader is the stage set of upload.Controller.
type Uploader interface {
	SubmitCode(ctx context.Context, u upload.Upload) (upload.Upload, error)
	SubmitKeysForCert(ctx context.Context, u upload.Upload) (upload.Upload, error)
	Publish(ctx context.Context, u upload.Upload) (upload.Upload, error)
}

type DiagnosisService struct {
	uploader   Uploader
	repo       diagnoses.Repository
	log        logging.Logger
	retryBase  time.Duration
	maxRetries uint64

	now   func() time.Time
	newID func() string
}

type DiagnosisOption func(*DiagnosisService)

// WithRetry retries transient stage failures with exponential backoff. By
// default every stage is attempted once.
func WithRetry(base time.Duration, maxRetries uint64) DiagnosisOption {
	return func(s *DiagnosisService) {
		s.retryBase = base
		s.maxRetries = maxRetries
	}
}

func NewDiagnosisService(u Uploader, repo diagnoses.Repository, log logging.Logger, opts ...DiagnosisOption) *DiagnosisService {
	s := &DiagnosisService{
		uploader: u,
		repo:     repo,
		log:      log.With("module", "diagnosis"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *DiagnosisService) stage(ctx context.Context, st upload.Stage, u upload.Upload) (upload.Upload, error) {
	out := u
	err := scheduler.WithBackoff(ctx, s.retryBase, s.maxRetries, func(ctx context.Context) error {
		next, err := st(ctx, u)
		if err != nil {
			return err
		}
		out = next
		return nil
	})
	return out, err
}

// VerifyCode exchanges code for a long-term token and stores a new record.
// A code that was verified before yields OutcomeAlreadyVerified with the
// existing record and no network call.
func (s *DiagnosisService) VerifyCode(ctx context.Context, code string) Result {
	existing, err := s.repo.GetByVerificationCode(ctx, code)
	switch {
	case err == nil && existing.Verified():
		return Result{Outcome: OutcomeAlreadyVerified, Record: existing}
	case err != nil && !errors.Is(err, common.ErrorNotFound):
		return failure(nil, fmt.Errorf("lookup code: %w", err))
	}

	u, err := s.stage(ctx, s.uploader.SubmitCode, upload.Upload{VerificationCode: code})
	if err != nil {
		return failure(nil, err)
	}

	now := s.now().UTC()
	rec := &models.DiagnosisRecord{
		ID:               s.newID(),
		VerificationCode: code,
		LongTermToken:    u.LongTermToken,
		TestType:         u.TestType,
		SymptomOnset:     u.SymptomOnset,
		SharedStatus:     models.SharedStatusNotAttempted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		return failure(nil, fmt.Errorf("create record: %w", err))
	}

	s.log.Info(ctx, "diagnosis verified", "id", rec.ID, "test_type", rec.TestType)
	return Result{Outcome: OutcomeOK, Record: rec}
}

// toUpload rebuilds the upload state of rec for ks. A stored certificate
// is kept only when it was issued for exactly this key set.
func toUpload(rec *models.DiagnosisRecord, ks []keys.DiagnosisKey) upload.Upload {
	u := upload.Upload{
		Keys:             ks,
		HMACKey:          rec.HMACKey,
		VerificationCode: rec.VerificationCode,
		LongTermToken:    rec.LongTermToken,
		Certificate:      rec.Certificate,
		CertifiedHMAC:    rec.CertifiedHMAC,
		RevisionToken:    rec.RevisionToken,
		SymptomOnset:     rec.SymptomOnset,
		Traveler:         rec.Traveler,
		TestType:         rec.TestType,
	}
	if u.Certified() && !u.CertifiesKeys() {
		u = u.WithKeys(ks)
	}
	return u
}

func apply(rec *models.DiagnosisRecord, u upload.Upload) {
	rec.HMACKey = u.HMACKey
	rec.LongTermToken = u.LongTermToken
	rec.Certificate = u.Certificate
	rec.CertifiedHMAC = u.CertifiedHMAC
	rec.RevisionToken = u.RevisionToken
	rec.SymptomOnset = u.SymptomOnset
	rec.Traveler = u.Traveler
}

func (s *DiagnosisService) save(ctx context.Context, rec *models.DiagnosisRecord, u upload.Upload) error {
	apply(rec, u)
	rec.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, rec); err != nil {
		return fmt.Errorf("update record %s: %w", rec.ID, err)
	}
	return nil
}

func (s *DiagnosisService) load(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	rec, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load record %s: %w", id, err)
	}
	if !rec.Verified() {
		return rec, common.ErrMissingToken
	}
	return rec, nil
}

// share runs the certificate and publish stages, persisting the record
// after each one. keepStatus leaves the shared status untouched on failure.
func (s *DiagnosisService) share(ctx context.Context, rec *models.DiagnosisRecord, u upload.Upload, keepStatus bool) Result {
	fail := func(err error) Result {
		if !keepStatus && !common.IsRetriable(err) {
			rec.SharedStatus = models.SharedStatusNotShared
		}
		if perr := s.save(ctx, rec, u); perr != nil {
			s.log.Error(ctx, "failed to persist upload progress", "id", rec.ID, "error", perr)
		}
		s.log.Warn(ctx, "sharing keys failed", "id", rec.ID, "error", err)
		return failure(rec, err)
	}

	if !u.Certified() {
		next, err := s.stage(ctx, s.uploader.SubmitKeysForCert, u)
		if err != nil {
			return fail(err)
		}
		u = next
		if err := s.save(ctx, rec, u); err != nil {
			return failure(rec, err)
		}
	}

	next, err := s.stage(ctx, s.uploader.Publish, u)
	if err != nil {
		return fail(err)
	}
	u = next

	rec.SharedStatus = models.SharedStatusShared
	if err := s.save(ctx, rec, u); err != nil {
		return failure(rec, err)
	}

	s.log.Info(ctx, "keys shared", "id", rec.ID, "keys", len(u.Keys))
	return Result{Outcome: OutcomeOK, Record: rec}
}

// Share publishes ks for a verified diagnosis, resuming from whatever the
// record already holds. A diagnosis that was shared yields
// OutcomeAlreadyShared; edits go through Reshare.
func (s *DiagnosisService) Share(ctx context.Context, id string, ks []keys.DiagnosisKey, traveler bool) Result {
	rec, err := s.load(ctx, id)
	if err != nil {
		return failure(rec, err)
	}
	if rec.SharedStatus == models.SharedStatusShared {
		return Result{Outcome: OutcomeAlreadyShared, Record: rec, Err: common.ErrAlreadyShared}
	}

	u := toUpload(rec, ks)
	u.Traveler = traveler
	return s.share(ctx, rec, u, false)
}

// Reshare publishes a changed key set or changed details for a diagnosis.
// The old certificate and HMAC key are discarded; the revision token is
// sent so the key server accepts the update. onset replaces the stored
// symptom onset when not nil.
func (s *DiagnosisService) Reshare(ctx context.Context, id string, ks []keys.DiagnosisKey, traveler bool, onset *time.Time) Result {
	rec, err := s.load(ctx, id)
	if err != nil {
		return failure(rec, err)
	}

	u := toUpload(rec, nil).WithKeys(ks)
	u.HMACKey = nil
	u.Traveler = traveler
	if onset != nil {
		u.SymptomOnset = onset
	}
	return s.share(ctx, rec, u, rec.SharedStatus == models.SharedStatusShared)
}

func (s *DiagnosisService) List(ctx context.Context) ([]*models.DiagnosisRecord, error) {
	return s.repo.List(ctx)
}

func (s *DiagnosisService) Get(ctx context.Context, id string) (*models.DiagnosisRecord, error) {
	return s.repo.GetByID(ctx, id)
}
