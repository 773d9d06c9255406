package signing

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/cryptox"
	"github.com/dmitrijs2005/exposurekeys/internal/filex"
)

const pemBlockType = "EC PRIVATE KEY"

// MemoryKeyStore keeps the key for the lifetime of the process only. A new
// keypair is generated on every start, so anything signed earlier can no
// longer be verified against a freshly advertised public key. Use it only
// where no protected store is available.
type MemoryKeyStore struct {
	mu  sync.Mutex
	key *ecdsa.PrivateKey
}

func NewMemoryKeyStore() *MemoryKeyStore {
	return &MemoryKeyStore{}
}

func (m *MemoryKeyStore) Load(context.Context) (*ecdsa.PrivateKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.key, nil
}

func (m *MemoryKeyStore) Save(_ context.Context, key *ecdsa.PrivateKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	return nil
}

// FileKeyStore keeps the key as a PEM encoded SEC 1 file readable only by
// the owner.
type FileKeyStore struct {
	path string
}

func NewFileKeyStore(path string) *FileKeyStore {
	return &FileKeyStore{path: path}
}

func (f *FileKeyStore) Load(context.Context) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	block, _ := pem.Decode(data)
	if block == nil || block.Type != pemBlockType {
		return nil, fmt.Errorf("%s: no %s block", f.path, pemBlockType)
	}
	return x509.ParseECPrivateKey(block.Bytes)
}

func (f *FileKeyStore) Save(_ context.Context, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(der)

	if _, err := filex.EnsureDir(filepath.Dir(f.path)); err != nil {
		return err
	}
	return filex.WriteFileAtomic(f.path, pem.EncodeToMemory(&pem.Block{Type: pemBlockType, Bytes: der}), 0o600)
}

// BlobStore is the small key/value surface SealedKeyStore needs. The client
// metadata repository satisfies it.
type BlobStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// SealedKeyStore keeps the DER key sealed with AES-GCM under a key derived
// from a passphrase. The argon2 salt is stored next to the sealed blob.
type SealedKeyStore struct {
	blobs      BlobStore
	name       string
	passphrase []byte
}

func NewSealedKeyStore(blobs BlobStore, name string, passphrase []byte) *SealedKeyStore {
	return &SealedKeyStore{blobs: blobs, name: name, passphrase: passphrase}
}

func (s *SealedKeyStore) saltKey() string   { return s.name + ".salt" }
func (s *SealedKeyStore) sealedKey() string { return s.name + ".sealed" }

func (s *SealedKeyStore) Load(ctx context.Context) (*ecdsa.PrivateKey, error) {
	sealed, err := s.blobs.Get(ctx, s.sealedKey())
	if err != nil {
		return nil, err
	}
	if sealed == nil {
		return nil, nil
	}

	salt, err := s.blobs.Get(ctx, s.saltKey())
	if err != nil {
		return nil, err
	}
	if salt == nil {
		return nil, fmt.Errorf("%s: salt missing", s.name)
	}

	wrapKey := cryptox.DeriveKey(s.passphrase, salt)
	defer common.WipeByteArray(wrapKey)

	der, err := cryptox.Open(wrapKey, sealed, []byte(s.name))
	if err != nil {
		return nil, fmt.Errorf("%s: open sealed key: %w", s.name, err)
	}
	defer common.WipeByteArray(der)

	return x509.ParseECPrivateKey(der)
}

func (s *SealedKeyStore) Save(ctx context.Context, key *ecdsa.PrivateKey) error {
	der, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(der)

	salt := common.GenerateRandByteArray(cryptox.SaltSize)
	wrapKey := cryptox.DeriveKey(s.passphrase, salt)
	defer common.WipeByteArray(wrapKey)

	sealed, err := cryptox.Seal(wrapKey, der, []byte(s.name))
	if err != nil {
		return err
	}

	if err := s.blobs.Set(ctx, s.saltKey(), salt); err != nil {
		return err
	}
	return s.blobs.Set(ctx, s.sealedKey(), sealed)
}
