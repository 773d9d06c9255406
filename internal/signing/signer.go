// Package signing owns the ECDSA P-256 keypair used to sign export files and
// exposes the metadata relying parties need to verify those signatures.
package signing

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

// AlgorithmOID identifies ECDSA with SHA-256.
const AlgorithmOID = "1.2.840.10045.4.3.2"

var ErrKeyUnavailable = errors.New("signing key unavailable")

// Info describes how a signature produced by a Signer should be checked.
type Info struct {
	KeyID        string
	KeyVersion   string
	AlgorithmOID string
}

// KeyStore persists the signing keypair. Load returns (nil, nil) when no key
// has been stored yet.
type KeyStore interface {
	Load(ctx context.Context) (*ecdsa.PrivateKey, error)
	Save(ctx context.Context, key *ecdsa.PrivateKey) error
}

// Signer holds exactly one keypair. The key is loaded from the store, or
// generated and saved, on first use.
type Signer struct {
	info  Info
	store KeyStore
	log   logging.Logger

	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

func NewSigner(keyID, keyVersion string, store KeyStore, log logging.Logger) *Signer {
	if store == nil {
		store = NewMemoryKeyStore()
	}
	return &Signer{
		info: Info{
			KeyID:        keyID,
			KeyVersion:   keyVersion,
			AlgorithmOID: AlgorithmOID,
		},
		store: store,
		log:   log.With("module", "signing", "key_id", keyID, "key_version", keyVersion),
	}
}

// Init forces key initialization so that a broken keystore fails at startup
// rather than at the first export.
func (s *Signer) Init(ctx context.Context) error {
	_, err := s.privateKey(ctx)
	return err
}

func (s *Signer) privateKey(ctx context.Context) (*ecdsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.key != nil {
		return s.key, nil
	}

	key, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: load: %v", ErrKeyUnavailable, err)
	}

	if key == nil {
		key, err = ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("%w: generate: %v", ErrKeyUnavailable, err)
		}
		if err := s.store.Save(ctx, key); err != nil {
			return nil, fmt.Errorf("%w: save: %v", ErrKeyUnavailable, err)
		}
		s.log.Info(ctx, "generated new signing key")
	} else if key.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: stored key is not P-256", ErrKeyUnavailable)
	}

	s.key = key
	return key, nil
}

// Sign returns an ASN.1 encoded ECDSA signature over the SHA-256 digest of data.
func (s *Signer) Sign(ctx context.Context, data []byte) ([]byte, error) {
	key, err := s.privateKey(ctx)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(data)
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return nil, fmt.Errorf("sign: %w", err)
	}
	return sig, nil
}

func (s *Signer) VerificationInfo() Info {
	return s.info
}

func (s *Signer) PublicKey(ctx context.Context) (*ecdsa.PublicKey, error) {
	key, err := s.privateKey(ctx)
	if err != nil {
		return nil, err
	}
	return &key.PublicKey, nil
}

// PublicKeyBase64 returns the PKIX DER public key, standard base64 encoded.
func (s *Signer) PublicKeyBase64(ctx context.Context) (string, error) {
	pub, err := s.PublicKey(ctx)
	if err != nil {
		return "", err
	}
	return MarshalPublicKey(pub)
}
