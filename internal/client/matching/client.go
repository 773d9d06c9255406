package matching

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/exposurekeys/internal/common"
	"github.com/dmitrijs2005/exposurekeys/internal/keys"
)

// GRPCEngine is an Engine backed by a remote matching engine.
type GRPCEngine struct {
	cc   grpc.ClientConnInterface
	conn *grpc.ClientConn
}

// Dial connects to a matching engine on a local address. The engine runs on
// the same host, so the connection is not encrypted.
func Dial(addr string, opts ...grpc.DialOption) (*GRPCEngine, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}
	return &GRPCEngine{cc: conn, conn: conn}, nil
}

func (g *GRPCEngine) Close() error {
	if g.conn == nil {
		return nil
	}
	return g.conn.Close()
}

// mapError converts gRPC status codes into sentinel errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s", common.ErrNoInternet, st.Message())
	case codes.InvalidArgument, codes.FailedPrecondition:
		return fmt.Errorf("%w: %s", ErrRejected, st.Message())
	case codes.Unimplemented:
		return fmt.Errorf("%w: %s", common.ErrorInternal, st.Message())
	}
	return err
}

func (g *GRPCEngine) ProvideDiagnosisKeys(ctx context.Context, paths []string) error {
	in, err := pathsToList(paths)
	if err != nil {
		return err
	}
	return mapError(g.cc.Invoke(ctx, provideMethod, in, &emptypb.Empty{}))
}

func (g *GRPCEngine) TemporaryExposureKeyHistory(ctx context.Context) ([]keys.DiagnosisKey, error) {
	out := &structpb.ListValue{}
	if err := g.cc.Invoke(ctx, historyMethod, &emptypb.Empty{}, out); err != nil {
		return nil, mapError(err)
	}
	return listToKeys(out)
}
