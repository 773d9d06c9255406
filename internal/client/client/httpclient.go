package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/netx"
)

// DefaultTimeout bounds each metadata call.
const DefaultTimeout = 30 * time.Second

// HTTPClient implements VerificationClient and KeyServerClient over JSON
// HTTP.
type HTTPClient struct {
	verificationURL string
	keyServerURL    string
	apiKey          string
	timeout         time.Duration
	http            *http.Client
}

type Option func(*HTTPClient)

func WithTimeout(d time.Duration) Option {
	return func(h *HTTPClient) { h.timeout = d }
}

func NewHTTPClient(verificationURL, keyServerURL, apiKey string, opts ...Option) *HTTPClient {
	h := &HTTPClient{
		verificationURL: strings.TrimRight(verificationURL, "/"),
		keyServerURL:    strings.TrimRight(keyServerURL, "/"),
		apiKey:          apiKey,
		timeout:         DefaultTimeout,
		http:            http.DefaultClient,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (c *HTTPClient) header() http.Header {
	h := http.Header{}
	if c.apiKey != "" {
		h.Set(common.APIKeyHeaderName, c.apiKey)
	}
	return h
}

func (c *HTTPClient) post(ctx context.Context, url string, header http.Header, in, out any) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status, err := netx.PostJSON(ctx, c.http, url, header, in, out)
	if err != nil {
		// A timeout is as good as no answer.
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return status, fmt.Errorf("%w: %w", common.ErrNoInternet, err)
		}
		return status, err
	}
	return status, nil
}

func ok(status int) bool {
	return status >= 200 && status < 300
}

func (c *HTTPClient) VerifyCode(ctx context.Context, req *api.VerifyCodeRequest) (*api.VerifyCodeResponse, error) {
	var resp api.VerifyCodeResponse
	status, err := c.post(ctx, c.verificationURL+api.PathVerify, c.header(), req, &resp)
	if err != nil {
		return nil, err
	}
	if !ok(status) || resp.ErrorCode != "" {
		return nil, mapVerificationError(status, resp.ErrorCode, resp.Error)
	}
	if resp.VerificationToken == "" {
		return nil, fmt.Errorf("%w: response has no token", common.ErrVerificationServer)
	}
	return &resp, nil
}

func (c *HTTPClient) Certificate(ctx context.Context, req *api.VerificationCertificateRequest) (*api.VerificationCertificateResponse, error) {
	var resp api.VerificationCertificateResponse
	status, err := c.post(ctx, c.verificationURL+api.PathCertificate, c.header(), req, &resp)
	if err != nil {
		return nil, err
	}
	if !ok(status) || resp.ErrorCode != "" {
		return nil, mapVerificationError(status, resp.ErrorCode, resp.Error)
	}
	if resp.Certificate == "" {
		return nil, fmt.Errorf("%w: response has no certificate", common.ErrVerificationServer)
	}
	return &resp, nil
}

func (c *HTTPClient) Publish(ctx context.Context, req *api.Publish) (*api.PublishResponse, error) {
	var resp api.PublishResponse
	status, err := c.post(ctx, c.keyServerURL+api.PathPublish, nil, req, &resp)
	if err != nil {
		return nil, err
	}
	if !ok(status) || resp.Code != "" {
		return nil, mapPublishError(status, resp.Code, resp.ErrorMessage)
	}
	return &resp, nil
}
