// Package cli implements the exposure keys client command line.
//
// The root command binds the client configuration to persistent flags and
// offers subcommands for the diagnosis upload flow (verify, share, reshare,
// list), for export ingestion (ingest, daemon, cursors), for working with signed
// export files (export encode, export inspect, pubkey) and for running a
// local development matching engine (engine).
package cli
