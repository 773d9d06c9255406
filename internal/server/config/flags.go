package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN
//	-s string   token and certificate HMAC secret
//	-k string   API key for /api routes
//	-v string   revision token key passphrase
//	-t int      long-term token validity, minutes
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-r string   export region
//	-n int      maximum keys per export file
//	-i int      export interval, minutes
//	-f string   signing key PEM file
//
// Only flags defined here are parsed, so -c/-config and unknown arguments
// pass through untouched.
func parseFlags(config *Config) {
	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddrHTTP, "a", config.EndpointAddrHTTP, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.SecretKey, "s", config.SecretKey, "secret key")
	fs.StringVar(&config.APIKey, "k", config.APIKey, "API key")
	fs.StringVar(&config.RevisionKey, "v", config.RevisionKey, "revision token key")

	tokenValidity := fs.Int("t", int(config.TokenValidity.Minutes()), "long-term token validity (in minutes)")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")

	fs.StringVar(&config.ExportRegion, "r", config.ExportRegion, "export region")
	fs.IntVar(&config.ExportBatchSize, "n", config.ExportBatchSize, "maximum keys per export file")
	exportInterval := fs.Int("i", int(config.ExportInterval.Minutes()), "export interval (in minutes)")
	fs.StringVar(&config.SigningKeyPath, "f", config.SigningKeyPath, "signing key file")

	if err := flagx.ParseOwn(fs, os.Args[1:]); err != nil {
		panic(err)
	}

	config.TokenValidity = time.Duration(*tokenValidity) * time.Minute
	config.ExportInterval = time.Duration(*exportInterval) * time.Minute
}
