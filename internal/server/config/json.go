package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/flagx"
	"github.com/dmitrijs2005/exposurekeys/internal/timex"
)

// JsonConfig is the on-disk shape of the server configuration. Durations use
// timex.Duration, so both "15m" and integer nanoseconds are accepted.
type JsonConfig struct {
	EndpointAddrHTTP    string         `json:"endpoint_addr_http"`
	DatabaseDSN         string         `json:"database_dsn"`
	SecretKey           string         `json:"secret_key"`
	RevisionKey         string         `json:"revision_key"`
	APIKey              string         `json:"api_key"`
	CodeValidity        timex.Duration `json:"code_validity"`
	TokenValidity       timex.Duration `json:"token_validity"`
	CertificateValidity timex.Duration `json:"certificate_validity"`
	S3RootUser          string         `json:"s3_root_user"`
	S3RootPassword      string         `json:"s3_root_password"`
	S3Bucket            string         `json:"s3_bucket"`
	S3Region            string         `json:"s3_region"`
	S3BaseEndpoint      string         `json:"s3_base_endpoint"`
	ExportRegion        string         `json:"export_region"`
	ExportBatchSize     int            `json:"export_batch_size"`
	ExportInterval      timex.Duration `json:"export_interval"`
	SigningKeyPath      string         `json:"signing_key_path"`
	SigningKeyID        string         `json:"signing_key_id"`
	SigningKeyVersion   string         `json:"signing_key_version"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}

// parseJson overlays config with the non-empty values of the file named by
// -c or -config. Without either flag nothing happens. Unreadable or invalid
// JSON panics.
func parseJson(config *Config) {
	jsonConfigFile := flagx.ConfigPath(os.Args[1:])
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.EndpointAddrHTTP, c.EndpointAddrHTTP)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setString(&config.RevisionKey, c.RevisionKey)
	setString(&config.APIKey, c.APIKey)
	setDuration(&config.CodeValidity, c.CodeValidity)
	setDuration(&config.TokenValidity, c.TokenValidity)
	setDuration(&config.CertificateValidity, c.CertificateValidity)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	setString(&config.ExportRegion, c.ExportRegion)
	if c.ExportBatchSize != 0 {
		config.ExportBatchSize = c.ExportBatchSize
	}
	setDuration(&config.ExportInterval, c.ExportInterval)
	setString(&config.SigningKeyPath, c.SigningKeyPath)
	setString(&config.SigningKeyID, c.SigningKeyID)
	setString(&config.SigningKeyVersion, c.SigningKeyVersion)
}
