package matching

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/dmitrijs2005/exposurekeys/internal/api"
	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/export"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
	"github.com/dmitrijs2005/exposurekeys/internal/logging"
	"github.com/dmitrijs2005/exposurekeys/internal/signing"
)

type fakeEngine struct {
	Engine

	gotPaths []string
	err      error
	history  []keys.DiagnosisKey
}

func (f *fakeEngine) ProvideDiagnosisKeys(_ context.Context, paths []string) error {
	f.gotPaths = paths
	return f.err
}

func (f *fakeEngine) TemporaryExposureKeyHistory(context.Context) ([]keys.DiagnosisKey, error) {
	return f.history, f.err
}

// startServer serves impl over an in-memory listener and returns a client.
func startServer(t *testing.T, impl Engine) *GRPCEngine {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewServer("bufnet", impl, logging.Discard()).Serve(ctx, lis) }()

	g, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = g.Close()
		cancel()
		<-done
	})
	return g
}

func testKey(t *testing.T, fill byte) keys.DiagnosisKey {
	t.Helper()
	k, err := keys.New(bytes.Repeat([]byte{fill}, 16), 2650000, 144, 2)
	require.NoError(t, err)
	return k
}

func TestProvideDiagnosisKeys_RoundTrip(t *testing.T) {
	impl := &fakeEngine{}
	g := startServer(t, impl)

	paths := []string{"/tmp/a.zip", "/tmp/b.zip"}
	require.NoError(t, g.ProvideDiagnosisKeys(context.Background(), paths))
	assert.Equal(t, paths, impl.gotPaths)
}

func TestTemporaryExposureKeyHistory_RoundTrip(t *testing.T) {
	want := []keys.DiagnosisKey{testKey(t, 1), testKey(t, 2)}
	g := startServer(t, &fakeEngine{history: want})

	got, err := g.TemporaryExposureKeyHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"rejected", ErrRejected, ErrRejected},
		{"unavailable", status.Error(codes.Unavailable, "down"), common.ErrNoInternet},
		{"deadline", status.Error(codes.DeadlineExceeded, "slow"), common.ErrNoInternet},
		{"invalid", status.Error(codes.InvalidArgument, "bad"), ErrRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := startServer(t, &fakeEngine{err: tt.err})
			err := g.ProvideDiagnosisKeys(context.Background(), []string{"x"})
			assert.ErrorIs(t, err, tt.want)
		})
	}

	g := startServer(t, &fakeEngine{err: errors.New("boom")})
	err := g.ProvideDiagnosisKeys(context.Background(), []string{"x"})
	assert.Equal(t, codes.Internal, status.Code(err))
}

func TestDial_UnreachableIsNoInternet(t *testing.T) {
	lis := bufconn.Listen(1024)
	require.NoError(t, lis.Close())

	g, err := Dial("passthrough:///bufnet", grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	require.NoError(t, err)
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err = g.ProvideDiagnosisKeys(ctx, []string{"x"})
	assert.ErrorIs(t, err, common.ErrNoInternet)
}

func TestLocalEngine(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	signer := signing.NewSigner("310", "v1", nil, logging.Discard())
	pub, err := signer.PublicKey(ctx)
	require.NoError(t, err)
	trusted := []export.VerificationKey{{KeyID: "310", KeyVersion: "v1", PublicKey: pub}}

	exports, err := export.Encoder{Signers: []export.Signer{signer}}.Encode(ctx,
		[]keys.DiagnosisKey{testKey(t, 1), testKey(t, 2)},
		time.Date(2020, 5, 20, 0, 0, 0, 0, time.UTC), time.Date(2020, 5, 21, 0, 0, 0, 0, time.UTC), "US")
	require.NoError(t, err)
	good := filepath.Join(dir, "good.zip")
	require.NoError(t, exports[0].WriteFile(good))

	history := filepath.Join(dir, "history.json")
	raw, err := json.Marshal(api.FromKeys([]keys.DiagnosisKey{testKey(t, 2), testKey(t, 9)}))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(history, raw, 0o600))

	e := NewLocalEngine(history, trusted, logging.Discard())
	require.NoError(t, e.ProvideDiagnosisKeys(ctx, []string{good}))
	assert.Equal(t, 2, e.Ingested())

	own, err := e.TemporaryExposureKeyHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, own, 2)

	bad := filepath.Join(dir, "bad.zip")
	require.NoError(t, os.WriteFile(bad, []byte("junk"), 0o600))
	assert.ErrorIs(t, e.ProvideDiagnosisKeys(ctx, []string{good, bad}), ErrRejected)

	other := signing.NewSigner("310", "v1", nil, logging.Discard())
	otherPub, err := other.PublicKey(ctx)
	require.NoError(t, err)
	strict := NewLocalEngine("", []export.VerificationKey{{KeyID: "310", KeyVersion: "v1", PublicKey: otherPub}}, logging.Discard())
	assert.ErrorIs(t, strict.ProvideDiagnosisKeys(ctx, []string{good}), ErrRejected)
}
