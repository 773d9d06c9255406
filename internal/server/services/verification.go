// Package services contains the key server's business logic: verification
// codes and certificates, key publishing and the periodic export.
package services

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"slices"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/server/auth"
	"github.com/dmitrijs2005/exposurekeys/internal/server/config"
	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/exposurekeys/internal/timex"
	"github.com/google/uuid"
)

const (
	// CodeLength is the number of decimal digits in a verification code.
	CodeLength = 8

	// MaxSymptomAge bounds how far back a symptom date may lie.
	MaxSymptomAge = 28 * 24 * time.Hour

	codeAttempts = 3
)

// IssuableTestTypes are the diagnosis kinds a code can be issued for.
var IssuableTestTypes = []keys.ReportType{
	keys.ReportTypeConfirmedTest,
	keys.ReportTypeConfirmedClinical,
	keys.ReportTypeSelfReport,
}

// VerifiedCode is what a claimed code is exchanged for.
type VerifiedCode struct {
	Token       string
	ExpiresAt   time.Time
	TestType    string
	SymptomDate string
}

type VerificationService struct {
	db                  *sql.DB
	repomanager         repomanager.RepositoryManager
	jwtSecret           []byte
	codeValidity        time.Duration
	tokenValidity       time.Duration
	certificateValidity time.Duration
	log                 logging.Logger

	now     func() time.Time
	newCode func() (string, error)
}

func NewVerificationService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *VerificationService {
	return &VerificationService{
		db:                  db,
		repomanager:         m,
		jwtSecret:           []byte(cfg.SecretKey),
		codeValidity:        cfg.CodeValidity,
		tokenValidity:       cfg.TokenValidity,
		certificateValidity: cfg.CertificateValidity,
		log:                 log.With("module", "verification"),
		now:                 time.Now,
		newCode:             randomCode,
	}
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(100_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", CodeLength, n.Int64()), nil
}

// Issue creates a verification code for a diagnosis. A clinical diagnosis
// needs a symptom date; when given, the date may not lie in the future or
// more than MaxSymptomAge in the past.
func (s *VerificationService) Issue(ctx context.Context, testType string, symptomDate *time.Time) (*models.VerificationCode, error) {
	rt, err := keys.ParseReportType(testType)
	if err != nil || !slices.Contains(IssuableTestTypes, rt) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTestType, testType)
	}

	now := s.now().UTC()
	if symptomDate == nil && rt == keys.ReportTypeConfirmedClinical {
		return nil, ErrMissingDate
	}
	if symptomDate != nil {
		day := timex.TruncateDay(*symptomDate)
		if day.After(now) || now.Sub(day) > MaxSymptomAge {
			return nil, fmt.Errorf("%w: %s", ErrInvalidDate, day.Format(api.DateFormat))
		}
		symptomDate = &day
	}

	repo := s.repomanager.Codes(s.db)
	for attempt := 1; ; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, common.ErrorInternal
		}

		vc := &models.VerificationCode{
			ID:          uuid.NewString(),
			Code:        code,
			TestType:    rt.String(),
			SymptomDate: symptomDate,
			ExpiresAt:   now.Add(s.codeValidity),
		}
		err = repo.Create(ctx, vc)
		switch {
		case err == nil:
			s.log.Info(ctx, "verification code issued", "id", vc.ID, "test_type", vc.TestType)
			return vc, nil
		case errors.Is(err, common.ErrorConflict) && attempt < codeAttempts:
			continue
		default:
			return nil, fmt.Errorf("error creating verification code: %w", err)
		}
	}
}

// Verify claims code and returns a long-term token for it. A code can be
// claimed once. When accept is not empty the code's test type must be in it.
func (s *VerificationService) Verify(ctx context.Context, code string, accept []string) (*VerifiedCode, error) {
	vc, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (*models.VerificationCode, error) {
		repo := s.repomanager.Codes(tx)

		vc, err := repo.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, ErrCodeNotFound
			}
			return nil, err
		}

		now := s.now().UTC()
		switch {
		case vc.Claimed:
			return nil, ErrCodeAlreadyUsed
		case vc.Expired(now):
			return nil, ErrCodeExpired
		case len(accept) > 0 && !slices.Contains(accept, vc.TestType):
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedTestType, vc.TestType)
		}

		if err := repo.MarkClaimed(ctx, vc.ID, now); err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return nil, ErrCodeAlreadyUsed
			}
			return nil, err
		}
		return vc, nil
	})
	if err != nil {
		return nil, err
	}

	symptomDate := ""
	if vc.SymptomDate != nil {
		symptomDate = vc.SymptomDate.Format(api.DateFormat)
	}

	token, expires, err := auth.GenerateToken(vc.ID, vc.TestType, symptomDate, s.jwtSecret, s.tokenValidity)
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "verification code claimed", "id", vc.ID)
	return &VerifiedCode{Token: token, ExpiresAt: expires, TestType: vc.TestType, SymptomDate: symptomDate}, nil
}

// Certify signs a certificate binding the diagnosis behind token to the key
// set whose HMAC is keySetHMAC (standard base64 of an HMAC-SHA256).
func (s *VerificationService) Certify(ctx context.Context, token, keySetHMAC string) (string, error) {
	claims, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return "", err
	}

	mac, err := base64.StdEncoding.DecodeString(keySetHMAC)
	if err != nil || len(mac) != 32 {
		return "", ErrInvalidHMAC
	}

	var onset uint32
	if claims.SymptomDate != "" {
		day, err := time.Parse(api.DateFormat, claims.SymptomDate)
		if err != nil {
			return "", fmt.Errorf("%w: symptom date claim", common.ErrInvalidToken)
		}
		onset = timex.IntervalNumber(day)
	}

	cert, err := auth.GenerateCertificate(claims.Subject, claims.TestType, onset, keySetHMAC, s.jwtSecret, s.certificateValidity)
	if err != nil {
		return "", common.ErrorInternal
	}

	s.log.Info(ctx, "key set certified", "id", claims.Subject)
	return cert, nil
}

// Cleanup removes codes that expired before now minus keep.
func (s *VerificationService) Cleanup(ctx context.Context, keep time.Duration) (int64, error) {
	n, err := s.repomanager.Codes(s.db).DeleteExpired(ctx, s.now().UTC().Add(-keep))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info(ctx, "expired verification codes removed", "count", n)
	}
	return n, nil
}
