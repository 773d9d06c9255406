package config

import (
	"github.com/spf13/pflag"
)

const (
	flagConfig           = "config"
	flagVerificationURL  = "verification-url"
	flagKeyServerURL     = "key-server-url"
	flagExportBaseURL    = "export-base-url"
	flagRegions          = "regions"
	flagAPIKey           = "api-key"
	flagHealthAuthority  = "health-authority-id"
	flagDBPath           = "db"
	flagWorkDir          = "work-dir"
	flagEngineAddr       = "engine-addr"
	flagDebugHexFilter   = "debug-hex-filter"
	flagIngestInterval   = "ingest-interval"
	flagRequestTimeout   = "request-timeout"
	flagRetryBase        = "retry-base"
	flagMaxRetries       = "max-retries"
	flagSignerKeyID      = "signer-key-id"
	flagSignerKeyVersion = "signer-key-version"
	flagDebug            = "debug"
	flagInsecureSkip     = "insecure-skip-verify"
)

// Loader binds the configuration to a flag set. Flags are registered with
// the defaults; Load then overlays the JSON file and restores any flag the
// user set explicitly, so precedence is defaults < JSON < flags.
type Loader struct {
	cfg        *Config
	fs         *pflag.FlagSet
	configPath string
}

// Bind registers the client flags on fs and returns a Loader for them.
func Bind(fs *pflag.FlagSet) *Loader {
	cfg := &Config{}
	cfg.LoadDefaults()
	l := &Loader{cfg: cfg, fs: fs}

	fs.StringVarP(&l.configPath, flagConfig, "c", "", "path to a JSON configuration file")
	fs.StringVarP(&cfg.VerificationURL, flagVerificationURL, "v", cfg.VerificationURL, "verification server base URL")
	fs.StringVarP(&cfg.KeyServerURL, flagKeyServerURL, "k", cfg.KeyServerURL, "key server base URL")
	fs.StringVarP(&cfg.ExportBaseURL, flagExportBaseURL, "e", cfg.ExportBaseURL, "export download base URL")
	fs.StringSliceVarP(&cfg.Regions, flagRegions, "r", cfg.Regions, "regions to download exports for")
	fs.StringVarP(&cfg.APIKey, flagAPIKey, "x", cfg.APIKey, "verification server API key")
	fs.StringVar(&cfg.HealthAuthorityID, flagHealthAuthority, cfg.HealthAuthorityID, "health authority id sent with uploads")
	fs.StringVarP(&cfg.DBPath, flagDBPath, "d", cfg.DBPath, "path to the local SQLite database")
	fs.StringVarP(&cfg.WorkDir, flagWorkDir, "w", cfg.WorkDir, "directory for downloaded export files")
	fs.StringVarP(&cfg.EngineAddr, flagEngineAddr, "m", cfg.EngineAddr, "matching engine gRPC address")
	fs.StringVarP(&cfg.DebugHexFilter, flagDebugHexFilter, "f", cfg.DebugHexFilter, "log keys whose hex contains this substring")
	fs.DurationVarP(&cfg.IngestInterval, flagIngestInterval, "i", cfg.IngestInterval, "periodic ingest interval (at least 4h)")
	fs.DurationVar(&cfg.RequestTimeout, flagRequestTimeout, cfg.RequestTimeout, "timeout for verification and key server calls")
	fs.DurationVar(&cfg.RetryBase, flagRetryBase, cfg.RetryBase, "base delay of the upload retry backoff")
	fs.Uint64Var(&cfg.MaxRetries, flagMaxRetries, cfg.MaxRetries, "upload retry attempts")
	fs.StringVar(&cfg.SignerKeyID, flagSignerKeyID, cfg.SignerKeyID, "key id advertised by the local export signer")
	fs.StringVar(&cfg.SignerKeyVersion, flagSignerKeyVersion, cfg.SignerKeyVersion, "key version advertised by the local export signer")
	fs.BoolVar(&cfg.Debug, flagDebug, cfg.Debug, "enable debug logging")
	fs.BoolVar(&cfg.InsecureSkipVerify, flagInsecureSkip, cfg.InsecureSkipVerify, "ingest exports without verifying signatures (local testing only)")

	return l
}

// Load must be called after the flag set has been parsed.
func (l *Loader) Load() (*Config, error) {
	if l.configPath != "" {
		if err := parseJson(l.cfg, l.configPath, l.fs.Changed); err != nil {
			return nil, err
		}
	}
	if err := l.cfg.Validate(); err != nil {
		return nil, err
	}
	return l.cfg, nil
}
