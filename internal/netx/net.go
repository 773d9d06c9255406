// Package netx wraps the HTTP plumbing shared by the verification, key
// server and export download clients.
package netx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
)

// MaxBodySize bounds response bodies read into memory.
const MaxBodySize = 32 << 20

// ErrBodyTooLarge is returned for a response body over MaxBodySize.
var ErrBodyTooLarge = errors.New("response body too large")

var bodyLimit int64 = MaxBodySize

// readBody reads at most bodyLimit bytes and fails rather than truncating.
func readBody(url string, r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, bodyLimit+1))
	if err != nil {
		return nil, transportError("read", url, err)
	}
	if int64(len(body)) > bodyLimit {
		return nil, fmt.Errorf("read %s: %w: over %d bytes", url, ErrBodyTooLarge, bodyLimit)
	}
	return body, nil
}

// StatusError reports a non-2xx response that has no better classification.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
}

// transportError classifies a failed round trip. Deadline expiry stays
// visible to errors.Is; anything else is treated as lost connectivity.
func transportError(op, url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", op, url, err)
	}
	return fmt.Errorf("%s %s: %w: %v", op, url, common.ErrNoInternet, err)
}

// Fetch downloads url. 404 wraps common.ErrorNotFound, 5xx wraps
// common.ErrServerError, transport failures wrap common.ErrNoInternet.
func Fetch(ctx context.Context, c *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Do(req)
	if err != nil {
		return nil, transportError("get", url, err)
	}
	defer resp.Body.Close()

	body, err := readBody(url, resp.Body)
	if err != nil {
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("get %s: %w", url, common.ErrorNotFound)
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("get %s: %w: status %d", url, common.ErrServerError, resp.StatusCode)
	default:
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}
}

// PostJSON sends in as a JSON body and decodes the JSON response into out,
// whatever the status code, since servers report errors in the body. The
// status code is returned for the caller to classify.
func PostJSON(ctx context.Context, c *http.Client, url string, header http.Header, in, out any) (int, error) {
	payload, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return 0, transportError("post", url, err)
	}
	defer resp.Body.Close()

	body, err := readBody(url, resp.Body)
	if err != nil {
		return resp.StatusCode, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return resp.StatusCode, nil
	}

	if err := json.Unmarshal(body, out); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp.StatusCode, fmt.Errorf("decode response: %w", err)
		}
		// Proxies and load balancers answer errors with HTML; the status
		// code alone is enough to classify those.
	}
	return resp.StatusCode, nil
}
