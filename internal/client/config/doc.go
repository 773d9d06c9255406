// Package config loads runtime configuration for the exposure keys client.
//
// Sources, lowest precedence first:
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file given with -c/--config.
//  3. Command-line flags set explicitly by the user.
//
// The flags are persistent flags of the client's root command, so every
// subcommand accepts them:
//
//	-v, --verification-url   verification server base URL
//	-k, --key-server-url     key server base URL
//	-e, --export-base-url    export download base URL
//	-r, --regions            regions to download exports for
//	-x, --api-key            verification server API key
//	-d, --db                 local SQLite database
//	-w, --work-dir           directory for downloaded exports
//	-m, --engine-addr        matching engine gRPC address
//	-f, --debug-hex-filter   log keys whose hex contains this substring
//	-i, --ingest-interval    periodic ingest interval, never below 4h
//
// # JSON schema
//
//	{
//	  "verification_url": "https://verify.example",
//	  "key_server_url": "https://keys.example",
//	  "export_base_url": "https://cdn.example/exposure-keys",
//	  "regions": ["US"],
//	  "ingest_interval": "6h",
//	  "trusted_keys": [
//	    {"key_id": "310", "key_version": "v1", "public_key": "MFkw..."}
//	  ]
//	}
//
// Trusted publisher keys can only be configured from the file.
package config
