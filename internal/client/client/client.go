package client

import (
	"context"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
)

// VerificationClient talks to the verification server.
type VerificationClient interface {
	VerifyCode(ctx context.Context, req *api.VerifyCodeRequest) (*api.VerifyCodeResponse, error)
	Certificate(ctx context.Context, req *api.VerificationCertificateRequest) (*api.VerificationCertificateResponse, error)
}

// KeyServerClient talks to the key server.
type KeyServerClient interface {
	Publish(ctx context.Context, req *api.Publish) (*api.PublishResponse, error)
}
