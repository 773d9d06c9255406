package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	passphrase := []byte("correct horse battery staple")
	salt := []byte("fixed-salt-16byt")

	key1 := DeriveKey(passphrase, salt)
	key2 := DeriveKey(passphrase, salt)

	assert.Len(t, key1, KeySize)
	assert.Equal(t, key1, key2, "same inputs must derive the same key")
}

func TestDeriveKey_DifferentInputs(t *testing.T) {
	passphrase := []byte("secret")

	key1 := DeriveKey(passphrase, []byte("salt-1"))
	key2 := DeriveKey(passphrase, []byte("salt-2"))
	key3 := DeriveKey([]byte("other"), []byte("salt-1"))

	assert.False(t, bytes.Equal(key1, key2), "different salts must derive different keys")
	assert.False(t, bytes.Equal(key1, key3), "different passphrases must derive different keys")
}

func TestSealOpen_RoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	plaintext := []byte("der-encoded private key")

	sealed, err := Seal(key, plaintext, []byte("signing-key"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), string(plaintext))

	opened, err := Open(key, sealed, []byte("signing-key"))
	require.NoError(t, err)
	assert.Equal(t, plaintext, opened)
}

func TestOpen_Failures(t *testing.T) {
	key := bytes.Repeat([]byte{1}, KeySize)
	sealed, err := Seal(key, []byte("payload"), nil)
	require.NoError(t, err)

	t.Run("wrong key", func(t *testing.T) {
		_, err := Open(bytes.Repeat([]byte{2}, KeySize), sealed, nil)
		assert.Error(t, err)
	})

	t.Run("wrong additional data", func(t *testing.T) {
		_, err := Open(key, sealed, []byte("other"))
		assert.Error(t, err)
	})

	t.Run("tampered", func(t *testing.T) {
		bad := append([]byte(nil), sealed...)
		bad[len(bad)-1] ^= 0xFF
		_, err := Open(key, bad, nil)
		assert.Error(t, err)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := Open(key, []byte{1, 2, 3}, nil)
		assert.ErrorIs(t, err, ErrSealedTooShort)
	})

	t.Run("invalid key size", func(t *testing.T) {
		_, err := Open([]byte("short"), sealed, nil)
		assert.Error(t, err)
	})
}

func TestSealJSON_RoundTrip(t *testing.T) {
	type token struct {
		Keys []string `json:"keys"`
	}
	key := bytes.Repeat([]byte{9}, KeySize)

	sealed, err := SealJSON(key, token{Keys: []string{"a", "b"}}, nil)
	require.NoError(t, err)

	var got token
	require.NoError(t, OpenJSON(key, sealed, nil, &got))
	assert.Equal(t, []string{"a", "b"}, got.Keys)
}
