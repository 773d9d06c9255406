package signing

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

func TestSigner_SignAndVerify(t *testing.T) {
	ctx := context.Background()
	s := NewSigner("310", "v1", NewMemoryKeyStore(), logging.Discard())

	data := []byte("EK Export v1    payload")
	sig, err := s.Sign(ctx, data)
	require.NoError(t, err)

	pub, err := s.PublicKey(ctx)
	require.NoError(t, err)

	assert.True(t, Verify(pub, data, sig), "valid signature rejected")

	tampered := append([]byte(nil), data...)
	tampered[len(tampered)-1] ^= 0x01
	assert.False(t, Verify(pub, tampered, sig), "signature over different data accepted")
}

func TestSigner_DifferentSignerRejected(t *testing.T) {
	ctx := context.Background()
	a := NewSigner("a", "v1", nil, logging.Discard())
	b := NewSigner("b", "v1", nil, logging.Discard())

	data := []byte("payload")
	sig, err := a.Sign(ctx, data)
	require.NoError(t, err)

	pubB, err := b.PublicKey(ctx)
	require.NoError(t, err)
	assert.False(t, Verify(pubB, data, sig))
}

func TestSigner_VerificationInfo(t *testing.T) {
	s := NewSigner("310", "v2", nil, logging.Discard())
	assert.Equal(t, Info{KeyID: "310", KeyVersion: "v2", AlgorithmOID: "1.2.840.10045.4.3.2"}, s.VerificationInfo())
}

func TestSigner_KeyGeneratedOnceAndPersisted(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryKeyStore()

	s1 := NewSigner("id", "v1", store, logging.Discard())
	pk1, err := s1.PublicKeyBase64(ctx)
	require.NoError(t, err)

	again, err := s1.PublicKeyBase64(ctx)
	require.NoError(t, err)
	assert.Equal(t, pk1, again)

	// a second signer over the same store picks up the stored key
	s2 := NewSigner("id", "v1", store, logging.Discard())
	pk2, err := s2.PublicKeyBase64(ctx)
	require.NoError(t, err)
	assert.Equal(t, pk1, pk2)
}

func TestSigner_ConcurrentFirstUse(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{}
	s := NewSigner("id", "v1", store, logging.Discard())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Sign(ctx, []byte("x"))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, store.saves)
}

type countingStore struct {
	MemoryKeyStore
	saves int
}

func (c *countingStore) Save(ctx context.Context, key *ecdsa.PrivateKey) error {
	c.saves++
	return c.MemoryKeyStore.Save(ctx, key)
}

type brokenStore struct{}

func (brokenStore) Load(context.Context) (*ecdsa.PrivateKey, error) {
	return nil, errors.New("keystore locked")
}

func (brokenStore) Save(context.Context, *ecdsa.PrivateKey) error { return nil }

func TestSigner_KeyUnavailable(t *testing.T) {
	ctx := context.Background()
	s := NewSigner("id", "v1", brokenStore{}, logging.Discard())

	require.ErrorIs(t, s.Init(ctx), ErrKeyUnavailable)

	_, err := s.Sign(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrKeyUnavailable)

	_, err = s.PublicKeyBase64(ctx)
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}

func TestParsePublicKey(t *testing.T) {
	ctx := context.Background()
	s := NewSigner("id", "v1", nil, logging.Discard())

	encoded, err := s.PublicKeyBase64(ctx)
	require.NoError(t, err)

	pub, err := ParsePublicKey(encoded)
	require.NoError(t, err)

	sig, err := s.Sign(ctx, []byte("data"))
	require.NoError(t, err)
	assert.True(t, Verify(pub, []byte("data"), sig))

	_, err = ParsePublicKey("not base64!")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	_, err = ParsePublicKey("AAAA")
	assert.ErrorIs(t, err, ErrInvalidPublicKey)

	assert.False(t, Verify(nil, []byte("data"), sig))
}

func TestFileKeyStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "keys", "export.pem")
	store := NewFileKeyStore(path)

	k, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, k, "missing file means no key yet")

	s1 := NewSigner("id", "v1", store, logging.Discard())
	pk1, err := s1.PublicKeyBase64(ctx)
	require.NoError(t, err)

	s2 := NewSigner("id", "v1", NewFileKeyStore(path), logging.Discard())
	pk2, err := s2.PublicKeyBase64(ctx)
	require.NoError(t, err)
	assert.Equal(t, pk1, pk2)
}

type mapBlobs map[string][]byte

func (m mapBlobs) Get(_ context.Context, key string) ([]byte, error) { return m[key], nil }
func (m mapBlobs) Set(_ context.Context, key string, v []byte) error {
	m[key] = v
	return nil
}

func TestSealedKeyStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	blobs := mapBlobs{}

	s1 := NewSigner("id", "v1", NewSealedKeyStore(blobs, "signing_key", []byte("pass")), logging.Discard())
	pk1, err := s1.PublicKeyBase64(ctx)
	require.NoError(t, err)

	assert.Contains(t, blobs, "signing_key.salt")
	assert.Contains(t, blobs, "signing_key.sealed")

	s2 := NewSigner("id", "v1", NewSealedKeyStore(blobs, "signing_key", []byte("pass")), logging.Discard())
	pk2, err := s2.PublicKeyBase64(ctx)
	require.NoError(t, err)
	assert.Equal(t, pk1, pk2)

	wrong := NewSigner("id", "v1", NewSealedKeyStore(blobs, "signing_key", []byte("nope")), logging.Discard())
	_, err = wrong.Sign(ctx, []byte("x"))
	assert.ErrorIs(t, err, ErrKeyUnavailable)
}
