package grpc

import (
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcpeer "google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

func (s *GRPCServer) loggingInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx := ss.Context()

	remote := "unknown"
	if p, ok := grpcpeer.FromContext(ctx); ok && p.Addr != nil {
		remote = p.Addr.String()
	}

	start := time.Now()
	s.logger.Info(ctx, "peer connected", "remote", remote, "method", info.FullMethod)

	err := handler(srv, ss)

	s.logger.Info(ctx, "peer disconnected", "remote", remote, "duration", time.Since(start), "error", err)
	return err
}

// recoveryInterceptor turns a panic that escapes the stream handler into an
// Internal status instead of crashing the process.
func (s *GRPCServer) recoveryInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ss.Context(), "stream handler panic", "method", info.FullMethod, "panic", fmt.Sprint(r))
			err = status.Error(codes.Internal, "internal error")
		}
	}()
	return handler(srv, ss)
}
