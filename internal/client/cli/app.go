package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/exposurekeys/internal/client/client"
	"github.com/dmitrijs2005/exposurekeys/internal/client/config"
	"github.com/dmitrijs2005/exposurekeys/internal/client/download"
	"github.com/dmitrijs2005/exposurekeys/internal/client/matching"
	"github.com/dmitrijs2005/exposurekeys/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/exposurekeys/internal/client/services"
	"github.com/dmitrijs2005/exposurekeys/internal/client/submitter"
	"github.com/dmitrijs2005/exposurekeys/internal/client/upload"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/signing"
)

// SigningKeyName is the metadata key prefix of the sealed export signing key.
const SigningKeyName = "signing/export"

// EngineConn is a matching engine connection.
type EngineConn interface {
	matching.Engine
	Close() error
}

// dialEngine is a test seam for matching.Dial.
var dialEngine = func(addr string) (EngineConn, error) {
	return matching.Dial(addr)
}

// App holds the wired client components for one command invocation.
type App struct {
	cfg *config.Config
	out io.Writer
	log logging.Logger

	db        *sql.DB
	repos     *client.Repositories
	cursors   metadata.CursorRepository
	uploader  *upload.Controller
	diagnoses *services.DiagnosisService
	trusted   []export.VerificationKey
}

func trustedKeys(cfg *config.Config) ([]export.VerificationKey, error) {
	out := make([]export.VerificationKey, 0, len(cfg.TrustedKeys))
	for _, tk := range cfg.TrustedKeys {
		pub, err := signing.ParsePublicKey(tk.PublicKey)
		if err != nil {
			return nil, fmt.Errorf("trusted key %s/%s: %w", tk.KeyID, tk.KeyVersion, err)
		}
		out = append(out, export.VerificationKey{KeyID: tk.KeyID, KeyVersion: tk.KeyVersion, PublicKey: pub})
	}
	return out, nil
}

// NewApp opens the local database and wires the services on top of it.
func NewApp(ctx context.Context, cfg *config.Config, out io.Writer, log logging.Logger) (*App, error) {
	trusted, err := trustedKeys(cfg)
	if err != nil {
		return nil, err
	}

	db, err := client.InitDatabase(ctx, cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	repos := client.NewRepositories(db)

	httpClient := client.NewHTTPClient(cfg.VerificationURL, cfg.KeyServerURL, cfg.APIKey,
		client.WithTimeout(cfg.RequestTimeout))
	controller := upload.NewController(httpClient, httpClient, cfg.HealthAuthorityID, log)

	return &App{
		cfg:       cfg,
		out:       out,
		log:       log,
		db:        db,
		repos:     repos,
		cursors:   repos.Cursors,
		uploader:  controller,
		diagnoses: services.NewDiagnosisService(controller, repos.Diagnoses, log),
		trusted:   trusted,
	}, nil
}

func (a *App) Close() error {
	return a.db.Close()
}

// withRetry returns a diagnosis service that retries transient failures
// with the configured backoff.
func (a *App) withRetry() *services.DiagnosisService {
	return services.NewDiagnosisService(a.uploader, a.repos.Diagnoses, a.log,
		services.WithRetry(a.cfg.RetryBase, a.cfg.MaxRetries))
}

// checkIngest refuses to ingest when downloaded exports could not be
// verified.
func (a *App) checkIngest() error {
	if len(a.trusted) == 0 && !a.cfg.InsecureSkipVerify {
		return fmt.Errorf("%w: add trusted_keys to the config file", download.ErrNoTrustedKeys)
	}
	return nil
}

func (a *App) ingestService(engine matching.Engine) *services.IngestService {
	var opts []download.Option
	if a.cfg.InsecureSkipVerify {
		opts = append(opts, download.WithoutVerification())
	}
	d := download.New(a.cfg.ExportBaseURL, a.cfg.WorkDir, &http.Client{Timeout: a.cfg.RequestTimeout}, a.cursors, a.trusted, a.log, opts...)
	s := submitter.New(engine, a.cursors, a.log, submitter.WithDebugFilter(a.cfg.DebugHexFilter))
	return services.NewIngestService(d, s, a.cfg.Regions, a.log)
}

// signer unlocks the export signing key stored in the local database,
// creating it on first use.
func (a *App) signer(ctx context.Context, prompt io.Writer) (*signing.Signer, error) {
	pass, err := getPassphrase(prompt)
	if err != nil {
		return nil, err
	}
	store := signing.NewSealedKeyStore(a.repos.Metadata, SigningKeyName, pass)
	s := signing.NewSigner(a.cfg.SignerKeyID, a.cfg.SignerKeyVersion, store, a.log)
	err = s.Init(ctx)
	common.WipeByteArray(pass)
	if err != nil {
		return nil, err
	}
	return s, nil
}
