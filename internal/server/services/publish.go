package services

import (
	"context"
	"crypto/hmac"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/cryptox"
	"github.com/dmitrijs2005/exposurekeys/internal/dbx"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/server/auth"
	"github.com/dmitrijs2005/exposurekeys/internal/server/config"
	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/repomanager"
)

const (
	// MaxKeysPerPublish caps the size of one publish request.
	MaxKeysPerPublish = 30

	intervalsPerDay = 144
)

var (
	revisionSalt = []byte("exposurekeys revision token v1")
	revisionAAD  = []byte("revision")
)

// revisionToken lists the keys a publisher may later revise. It is sealed
// with AES-GCM and handed out as opaque base64.
type revisionToken struct {
	Keys []revisableKey `json:"k"`
}

type revisableKey struct {
	Key            string `json:"d"`
	IntervalNumber int32  `json:"s"`
	IntervalCount  int32  `json:"p"`
}

type PublishResult struct {
	RevisionToken string
	Inserted      int
}

type PublishService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	jwtSecret   []byte
	revisionKey []byte
	region      string
	log         logging.Logger

	now func() time.Time
}

func NewPublishService(db *sql.DB, m repomanager.RepositoryManager, cfg *config.Config, log logging.Logger) *PublishService {
	return &PublishService{
		db:          db,
		repomanager: m,
		jwtSecret:   []byte(cfg.SecretKey),
		revisionKey: cryptox.DeriveKey([]byte(cfg.RevisionKey), revisionSalt),
		region:      cfg.ExportRegion,
		log:         log.With("module", "publish"),
		now:         time.Now,
	}
}

// daysSinceOnset returns the whole days between the onset interval and the
// day a key started. ok is false when the distance is out of range.
func daysSinceOnset(rollingStart, onset uint32) (int32, bool) {
	days := int64(rollingStart/intervalsPerDay) - int64(onset/intervalsPerDay)
	if days < keys.MinDaysSinceOnset || days > keys.MaxDaysSinceOnset {
		return 0, false
	}
	return int32(days), true
}

func (s *PublishService) sealRevision(rt revisionToken) (string, error) {
	sealed, err := cryptox.SealJSON(s.revisionKey, rt, revisionAAD)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

func (s *PublishService) openRevision(token string) (revisionToken, error) {
	var rt revisionToken
	sealed, err := base64.StdEncoding.DecodeString(token)
	if err != nil {
		return rt, err
	}
	err = cryptox.OpenJSON(s.revisionKey, sealed, revisionAAD, &rt)
	return rt, err
}

// checkCertificate validates the certificate and its binding to ks through
// the publisher's HMAC key.
func (s *PublishService) checkCertificate(req *api.Publish, ks []keys.DiagnosisKey) (*auth.CertificateClaims, error) {
	claims, err := auth.ParseCertificate(req.VerificationPayload, s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadCertificate, err)
	}

	secret, err := base64.StdEncoding.DecodeString(req.HMACKey)
	if err != nil || len(secret) == 0 {
		return nil, fmt.Errorf("%w: hmac key is not base64", ErrBadCertificate)
	}
	want, err := base64.StdEncoding.DecodeString(claims.KeySetHMAC)
	if err != nil {
		return nil, fmt.Errorf("%w: certificate hmac is not base64", ErrBadCertificate)
	}
	got, err := keys.HMAC(secret, ks)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyValidation, err)
	}
	if !hmac.Equal(got, want) {
		return nil, fmt.Errorf("%w: key set does not match certificate", ErrBadCertificate)
	}
	return claims, nil
}

// Publish stores the keys of a certified publish. Keys that were published
// before may only be replaced by a caller holding a revision token that
// covers them with the same interval range. The returned token covers every
// key of this publish plus those of the presented token.
func (s *PublishService) Publish(ctx context.Context, req *api.Publish) (*PublishResult, error) {
	switch {
	case len(req.Keys) == 0:
		return nil, fmt.Errorf("%w: no keys", ErrKeyValidation)
	case len(req.Keys) > MaxKeysPerPublish:
		return nil, fmt.Errorf("%w: %d keys, at most %d allowed", ErrKeyValidation, len(req.Keys), MaxKeysPerPublish)
	}

	ks, err := api.ToKeys(req.Keys)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyValidation, err)
	}

	seen := make(map[string]bool, len(ks))
	names := make([]string, len(ks))
	for i, k := range ks {
		names[i] = k.Base64()
		if seen[names[i]] {
			return nil, fmt.Errorf("%w: key %d is duplicated", ErrKeyValidation, i)
		}
		seen[names[i]] = true
	}

	claims, err := s.checkCertificate(req, ks)
	if err != nil {
		return nil, err
	}

	reportType, err := keys.ParseReportType(claims.TestType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadCertificate, err)
	}

	onset := claims.SymptomOnsetInterval
	if onset == 0 && req.SymptomOnsetInterval > 0 {
		onset = uint32(req.SymptomOnsetInterval)
	}

	var presented *revisionToken
	if req.RevisionToken != "" {
		rt, err := s.openRevision(req.RevisionToken)
		if err != nil {
			return nil, ErrInvalidRevisionToken
		}
		presented = &rt
	}

	now := s.now().UTC()
	exposures := make([]*models.Exposure, len(ks))
	for i, k := range ks {
		e := &models.Exposure{
			ExposureKey:       names[i],
			TransmissionRisk:  k.TransmissionRisk(),
			IntervalNumber:    int32(k.RollingStart()),
			IntervalCount:     int32(k.RollingPeriod()),
			Region:            s.region,
			Traveler:          req.Traveler,
			HealthAuthorityID: req.HealthAuthorityID,
			ReportType:        reportType.String(),
			PublishedAt:       now,
		}
		if onset != 0 {
			if days, ok := daysSinceOnset(k.RollingStart(), onset); ok {
				e.DaysSinceOnset = &days
			}
		}
		exposures[i] = e
	}

	inserted, err := dbx.InTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) (int, error) {
		repo := s.repomanager.Exposures(tx)

		existing, err := repo.FindByKeys(ctx, names)
		if err != nil {
			return 0, err
		}
		if len(existing) > 0 {
			if presented == nil {
				return 0, ErrMissingRevisionToken
			}
			if err := covers(presented, existing, exposures); err != nil {
				return 0, err
			}
		}
		for _, e := range exposures {
			_, e.Revised = existing[e.ExposureKey]
		}

		return repo.Upsert(ctx, exposures)
	})
	if err != nil {
		if errors.Is(err, ErrMissingRevisionToken) || errors.Is(err, ErrInvalidRevisionToken) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: storing exposures: %w", common.ErrorInternal, err)
	}

	token, err := s.sealRevision(nextRevision(presented, exposures))
	if err != nil {
		return nil, common.ErrorInternal
	}

	s.log.Info(ctx, "exposures published", "keys", len(exposures), "inserted", inserted, "revision", presented != nil)
	return &PublishResult{RevisionToken: token, Inserted: inserted}, nil
}

// covers checks that every stored exposure is listed in rt with the
// interval range it was published with, and that the incoming copy of each
// stored key keeps that range.
func covers(rt *revisionToken, existing map[string]*models.Exposure, incoming []*models.Exposure) error {
	allowed := make(map[string]revisableKey, len(rt.Keys))
	for _, k := range rt.Keys {
		allowed[k.Key] = k
	}
	for key, e := range existing {
		k, ok := allowed[key]
		if !ok || k.IntervalNumber != e.IntervalNumber || k.IntervalCount != e.IntervalCount {
			return fmt.Errorf("%w: token does not cover a stored key", ErrInvalidRevisionToken)
		}
	}
	for _, in := range incoming {
		stored, ok := existing[in.ExposureKey]
		if !ok {
			continue
		}
		if in.IntervalNumber != stored.IntervalNumber || in.IntervalCount != stored.IntervalCount {
			return fmt.Errorf("%w: stored key cannot change its interval range", ErrInvalidRevisionToken)
		}
	}
	return nil
}

func nextRevision(prev *revisionToken, exposures []*models.Exposure) revisionToken {
	var next revisionToken
	seen := make(map[string]bool)
	for _, e := range exposures {
		seen[e.ExposureKey] = true
		next.Keys = append(next.Keys, revisableKey{Key: e.ExposureKey, IntervalNumber: e.IntervalNumber, IntervalCount: e.IntervalCount})
	}
	if prev != nil {
		for _, k := range prev.Keys {
			if !seen[k.Key] {
				next.Keys = append(next.Keys, k)
			}
		}
	}
	return next
}
