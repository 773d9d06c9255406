// Package server wires the verification and key server together: database,
// export signer, object storage, the HTTP API and the periodic export job.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/server/config"
	"github.com/dmitrijs2005/exposurekeys/internal/server/httpapi"
	"github.com/dmitrijs2005/exposurekeys/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/exposurekeys/internal/server/services"
	"github.com/dmitrijs2005/exposurekeys/internal/server/storage"
	"github.com/dmitrijs2005/exposurekeys/internal/signing"
)

// codeRetention is how long expired verification codes are kept around.
const codeRetention = 24 * time.Hour

var sqlOpen = sql.Open

type exporter interface {
	RunOnce(ctx context.Context) (int, error)
}

type codeCleaner interface {
	Cleanup(ctx context.Context, keep time.Duration) (int64, error)
}

type App struct {
	config   *config.Config
	logger   logging.Logger
	db       *sql.DB
	http     *httpapi.HTTPServer
	exporter exporter
	cleaner  codeCleaner
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSON(os.Stdout, slog.LevelInfo)

	db, err := sqlOpen("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	signer := signing.NewSigner(c.SigningKeyID, c.SigningKeyVersion, signing.NewFileKeyStore(c.SigningKeyPath), logger)
	if err := signer.Init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if pub, err := signer.PublicKeyBase64(ctx); err == nil {
		logger.Info(ctx, "export signing key", "key_id", c.SigningKeyID, "key_version", c.SigningKeyVersion, "public_key", pub)
	}

	store, err := storage.NewS3Store(ctx, c)
	if err != nil {
		db.Close()
		return nil, err
	}

	vs := services.NewVerificationService(db, rm, c, logger)
	ps := services.NewPublishService(db, rm, c, logger)
	es := services.NewExportService(db, rm, store, signer, c, logger)

	return &App{
		config:   c,
		logger:   logger,
		db:       db,
		http:     httpapi.NewHTTPServer(c.EndpointAddrHTTP, logger, vs, ps, db, c.APIKey),
		exporter: es,
		cleaner:  vs,
	}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// exportOnce runs one export and the code cleanup. Failures are logged; the
// next tick tries again.
func (app *App) exportOnce(ctx context.Context) {
	if _, err := app.exporter.RunOnce(ctx); err != nil {
		app.logger.Error(ctx, "export failed", "error", err)
	}
	if _, err := app.cleaner.Cleanup(ctx, codeRetention); err != nil {
		app.logger.Error(ctx, "code cleanup failed", "error", err)
	}
}

func (app *App) runExportLoop(ctx context.Context, interval time.Duration) {
	app.logger.Info(ctx, "Starting export loop", "interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			app.logger.Info(ctx, "Stopping export loop...")
			return
		case <-ticker.C:
			app.exportOnce(ctx)
		}
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.http.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.runExportLoop(ctx, app.config.ExportInterval)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close failed", "error", err)
	}
	app.logger.Info(ctx, "App stopped")
}
