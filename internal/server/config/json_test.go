package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	path := writeTempJSON(t, dir, "cfg.json", map[string]any{
		"endpoint_addr_http":   "www.example:9000",
		"database_dsn":         "postgres://db",
		"secret_key":           "my_secret_key",
		"certificate_validity": "5m",
		"token_validity":       3600000000000,
		"s3_bucket":            "bucket",
		"export_region":        "CA",
		"export_batch_size":    250,
		"export_interval":      "1m",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := defaults()
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "postgres://db", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 5*time.Minute, cfg.CertificateValidity)
		assert.Equal(t, time.Hour, cfg.TokenValidity)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "CA", cfg.ExportRegion)
		assert.Equal(t, 250, cfg.ExportBatchSize)
		assert.Equal(t, time.Minute, cfg.ExportInterval)

		// absent fields keep their defaults
		assert.Equal(t, "apiKey", cfg.APIKey)
		assert.Equal(t, time.Hour, cfg.CodeValidity)
	})

	t.Run("short flag", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", path}

		cfg := defaults()
		parseJson(cfg)
		assert.Equal(t, "CA", cfg.ExportRegion)
	})

	t.Run("flags override json", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", path, "-r", "MX"}

		cfg := LoadConfig()
		assert.Equal(t, "MX", cfg.ExportRegion)
		assert.Equal(t, "bucket", cfg.S3Bucket)
	})

	t.Run("no config flag leaves config alone", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := defaults()
		parseJson(cfg)
		assert.Equal(t, defaults(), cfg)
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}
		require.Panics(t, func() { parseJson(defaults()) })
	})
}
