package config

import (
	"fmt"
	"net/url"
	"time"
)

// MinIngestInterval is the floor for the periodic download and submit job.
const MinIngestInterval = 4 * time.Hour

// TrustedKey is a publisher public key accepted for downloaded exports.
type TrustedKey struct {
	KeyID      string `json:"key_id"`
	KeyVersion string `json:"key_version"`
	PublicKey  string `json:"public_key"`
}

// Config holds runtime settings for the exposure keys client.
type Config struct {
	VerificationURL   string
	KeyServerURL      string
	ExportBaseURL     string
	Regions           []string
	APIKey            string
	HealthAuthorityID string

	DBPath  string
	WorkDir string

	EngineAddr     string
	DebugHexFilter string

	IngestInterval time.Duration
	RequestTimeout time.Duration
	RetryBase      time.Duration
	MaxRetries     uint64

	SignerKeyID      string
	SignerKeyVersion string

	// TrustedKeys can only be set from the JSON file.
	TrustedKeys []TrustedKey
	// InsecureSkipVerify ingests exports without checking their signatures.
	InsecureSkipVerify bool

	Debug bool
}

func (c *Config) LoadDefaults() {
	c.VerificationURL = "http://127.0.0.1:8080"
	c.KeyServerURL = "http://127.0.0.1:8080"
	c.ExportBaseURL = "http://127.0.0.1:9000/exposure-keys"
	c.Regions = []string{"US"}
	c.APIKey = ""
	c.HealthAuthorityID = "com.example.health"
	c.DBPath = "exposurekeys.db"
	c.WorkDir = "downloads"
	c.EngineAddr = "127.0.0.1:50051"
	c.DebugHexFilter = ""
	c.IngestInterval = MinIngestInterval
	c.RequestTimeout = 30 * time.Second
	c.RetryBase = 30 * time.Minute
	c.MaxRetries = 5
	c.SignerKeyID = "client"
	c.SignerKeyVersion = "v1"
	c.TrustedKeys = nil
	c.InsecureSkipVerify = false
	c.Debug = false
}

// Validate clamps the ingest interval to its floor and checks URLs.
func (c *Config) Validate() error {
	if c.IngestInterval < MinIngestInterval {
		c.IngestInterval = MinIngestInterval
	}
	for name, raw := range map[string]string{
		"verification url": c.VerificationURL,
		"key server url":   c.KeyServerURL,
		"export base url":  c.ExportBaseURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid %s %q", name, raw)
		}
	}
	if len(c.Regions) == 0 {
		return fmt.Errorf("at least one region is required")
	}
	return nil
}
