// Package httpapi serves the verification and key server JSON API over echo.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/server/models"
	"github.com/dmitrijs2005/exposurekeys/internal/server/services"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

const (
	shutdownTimeout = 10 * time.Second
	bodyLimit       = "64K"
)

type Verifier interface {
	Issue(ctx context.Context, testType string, symptomDate *time.Time) (*models.VerificationCode, error)
	Verify(ctx context.Context, code string, accept []string) (*services.VerifiedCode, error)
	Certify(ctx context.Context, token, keySetHMAC string) (string, error)
}

type Publisher interface {
	Publish(ctx context.Context, req *api.Publish) (*services.PublishResult, error)
}

// Pinger reports database health. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type HTTPServer struct {
	address      string
	echo         *echo.Echo
	verification Verifier
	publish      Publisher
	db           Pinger
	apiKey       string
	logger       logging.Logger
}

func NewHTTPServer(address string, l logging.Logger, v Verifier, p Publisher, db Pinger, apiKey string) *HTTPServer {
	s := &HTTPServer{
		address:      address,
		verification: v,
		publish:      p,
		db:           db,
		apiKey:       apiKey,
		logger:       l.With("module", "http_server"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit(bodyLimit))
	e.Use(s.requestLogger())

	e.GET(api.PathHealth, s.getHealth)
	e.POST(api.PathPublish, s.postPublish)

	e.POST(api.PathIssue, s.postIssue, s.apiKeyMiddleware)
	e.POST(api.PathVerify, s.postVerify, s.apiKeyMiddleware)
	e.POST(api.PathCertificate, s.postCertificate, s.apiKeyMiddleware)

	s.echo = e
	return s
}

// Handler exposes the router, mainly for tests.
func (s *HTTPServer) Handler() http.Handler {
	return s.echo
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.echo.Start(s.address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
