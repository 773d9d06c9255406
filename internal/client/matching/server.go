package matching

import (
	"context"
	"errors"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/dmitrijs2005/exposurekeys/internal/logging"
)

func toStatus(err error) error {
	if _, ok := status.FromError(err); ok {
		return err
	}
	if errors.Is(err, ErrRejected) {
		return status.Error(codes.FailedPrecondition, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

func provideHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.ListValue{}
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, req any) (any, error) {
		paths, err := listToPaths(req.(*structpb.ListValue))
		if err != nil {
			return nil, status.Error(codes.InvalidArgument, err.Error())
		}
		if err := srv.(Engine).ProvideDiagnosisKeys(ctx, paths); err != nil {
			return nil, toStatus(err)
		}
		return &emptypb.Empty{}, nil
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: provideMethod}, handler)
}

func historyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &emptypb.Empty{}
	if err := dec(in); err != nil {
		return nil, err
	}
	handler := func(ctx context.Context, _ any) (any, error) {
		ks, err := srv.(Engine).TemporaryExposureKeyHistory(ctx)
		if err != nil {
			return nil, toStatus(err)
		}
		out, err := keysToList(ks)
		if err != nil {
			return nil, status.Error(codes.Internal, err.Error())
		}
		return out, nil
	}
	if interceptor == nil {
		return handler(ctx, in)
	}
	return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: historyMethod}, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*Engine)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ProvideDiagnosisKeys", Handler: provideHandler},
		{MethodName: "TemporaryExposureKeyHistory", Handler: historyHandler},
	},
	Metadata: "exposure/matching/v1/engine.proto",
}

// RegisterServer exposes impl as the MatchingEngine service on s.
func RegisterServer(s grpc.ServiceRegistrar, impl Engine) {
	s.RegisterService(&serviceDesc, impl)
}

// Server runs an Engine as a standalone gRPC service.
type Server struct {
	address string
	engine  Engine
	logger  logging.Logger
}

func NewServer(address string, engine Engine, l logging.Logger) *Server {
	return &Server{address: address, engine: engine, logger: l.With("module", "matching_server")}
}

func (s *Server) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Info(ctx, "rpc", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}

// Run serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

func (s *Server) Serve(ctx context.Context, listen net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	RegisterServer(srv, s.engine)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping matching engine server")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "starting matching engine server", "address", listen.Addr().String())
	return srv.Serve(listen)
}
