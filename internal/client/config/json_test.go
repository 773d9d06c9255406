package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoader_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"verification_url": "https://json-verify.example",
		"key_server_url":   "https://json-keys.example",
		"ingest_interval":  "8h",
		"trusted_keys": []map[string]string{
			{"key_id": "310", "key_version": "v1", "public_key": "MFkw"},
		},
	})

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	l := Bind(fs)
	require.NoError(t, fs.Parse([]string{"-c", path, "--key-server-url", "https://flag-keys.example"}))

	cfg, err := l.Load()
	require.NoError(t, err)

	assert.Equal(t, "https://json-verify.example", cfg.VerificationURL, "json beats defaults")
	assert.Equal(t, "https://flag-keys.example", cfg.KeyServerURL, "flags beat json")
	assert.Equal(t, 8*time.Hour, cfg.IngestInterval)
	assert.Equal(t, "exposurekeys.db", cfg.DBPath, "unset json fields keep defaults")
	assert.Equal(t, []TrustedKey{{KeyID: "310", KeyVersion: "v1", PublicKey: "MFkw"}}, cfg.TrustedKeys)
	assert.False(t, cfg.InsecureSkipVerify, "verification is on by default")
}

func TestLoader_InsecureSkipVerify(t *testing.T) {
	t.Run("flag", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		l := Bind(fs)
		require.NoError(t, fs.Parse([]string{"--insecure-skip-verify"}))
		cfg, err := l.Load()
		require.NoError(t, err)
		assert.True(t, cfg.InsecureSkipVerify)
	})

	t.Run("json", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{"insecure_skip_verify": true})
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		l := Bind(fs)
		require.NoError(t, fs.Parse([]string{"-c", path}))
		cfg, err := l.Load()
		require.NoError(t, err)
		assert.True(t, cfg.InsecureSkipVerify)
	})

	t.Run("explicit false flag beats json", func(t *testing.T) {
		path := writeTempJSON(t, map[string]any{"insecure_skip_verify": true})
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		l := Bind(fs)
		require.NoError(t, fs.Parse([]string{"-c", path, "--insecure-skip-verify=false"}))
		cfg, err := l.Load()
		require.NoError(t, err)
		assert.False(t, cfg.InsecureSkipVerify)
	})
}

func TestLoader_JSONErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		l := Bind(fs)
		require.NoError(t, fs.Parse([]string{"--config", filepath.Join(t.TempDir(), "absent.json")}))
		_, err := l.Load()
		assert.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
		l := Bind(fs)
		require.NoError(t, fs.Parse([]string{"-c", bad}))
		_, err := l.Load()
		assert.Error(t, err)
	})
}
