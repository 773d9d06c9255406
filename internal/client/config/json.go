package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Durations use
// timex.Duration so they can be written as "4h" or as nanoseconds.
type JsonConfig struct {
	VerificationURL   string         `json:"verification_url"`
	KeyServerURL      string         `json:"key_server_url"`
	ExportBaseURL     string         `json:"export_base_url"`
	Regions           []string       `json:"regions"`
	APIKey            string         `json:"api_key"`
	HealthAuthorityID string         `json:"health_authority_id"`
	DBPath            string         `json:"db_path"`
	WorkDir           string         `json:"work_dir"`
	EngineAddr        string         `json:"engine_addr"`
	DebugHexFilter    string         `json:"debug_hex_filter"`
	IngestInterval    timex.Duration `json:"ingest_interval"`
	RequestTimeout    timex.Duration `json:"request_timeout"`
	RetryBase         timex.Duration `json:"retry_base"`
	MaxRetries        uint64         `json:"max_retries"`
	SignerKeyID       string         `json:"signer_key_id"`
	SignerKeyVersion  string         `json:"signer_key_version"`
	TrustedKeys       []TrustedKey   `json:"trusted_keys"`
	// InsecureSkipVerify is only honoured when true.
	InsecureSkipVerify bool `json:"insecure_skip_verify"`
}

func setString(dst *string, v string, skip bool) {
	if v != "" && !skip {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration, skip bool) {
	if v.Duration != 0 && !skip {
		*dst = v.Duration
	}
}

// parseJson overlays cfg with the non-empty values from the JSON file at
// path. Fields whose flag the user set explicitly are left alone.
func parseJson(cfg *Config, path string, explicit func(flag string) bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var jc JsonConfig
	if err := json.Unmarshal(data, &jc); err != nil {
		return err
	}

	setString(&cfg.VerificationURL, jc.VerificationURL, explicit(flagVerificationURL))
	setString(&cfg.KeyServerURL, jc.KeyServerURL, explicit(flagKeyServerURL))
	setString(&cfg.ExportBaseURL, jc.ExportBaseURL, explicit(flagExportBaseURL))
	if len(jc.Regions) > 0 && !explicit(flagRegions) {
		cfg.Regions = jc.Regions
	}
	setString(&cfg.APIKey, jc.APIKey, explicit(flagAPIKey))
	setString(&cfg.HealthAuthorityID, jc.HealthAuthorityID, explicit(flagHealthAuthority))
	setString(&cfg.DBPath, jc.DBPath, explicit(flagDBPath))
	setString(&cfg.WorkDir, jc.WorkDir, explicit(flagWorkDir))
	setString(&cfg.EngineAddr, jc.EngineAddr, explicit(flagEngineAddr))
	setString(&cfg.DebugHexFilter, jc.DebugHexFilter, explicit(flagDebugHexFilter))
	setDuration(&cfg.IngestInterval, jc.IngestInterval, explicit(flagIngestInterval))
	setDuration(&cfg.RequestTimeout, jc.RequestTimeout, explicit(flagRequestTimeout))
	setDuration(&cfg.RetryBase, jc.RetryBase, explicit(flagRetryBase))
	if jc.MaxRetries != 0 && !explicit(flagMaxRetries) {
		cfg.MaxRetries = jc.MaxRetries
	}
	setString(&cfg.SignerKeyID, jc.SignerKeyID, explicit(flagSignerKeyID))
	setString(&cfg.SignerKeyVersion, jc.SignerKeyVersion, explicit(flagSignerKeyVersion))
	if len(jc.TrustedKeys) > 0 {
		cfg.TrustedKeys = jc.TrustedKeys
	}
	if jc.InsecureSkipVerify && !explicit(flagInsecureSkip) {
		cfg.InsecureSkipVerify = true
	}
	return nil
}
