package grpc

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/logging"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
	"github.com/dmitrijs2005/gophmaster/internal/server/peer"
	"github.com/dmitrijs2005/gophmaster/internal/server/services"
	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// PeerServer is implemented by the stream endpoint registered under
// packet.ServiceName.
type PeerServer interface {
	Connect(stream grpc.ServerStream) error
}

var peerServiceDesc = grpc.ServiceDesc{
	ServiceName: packet.ServiceName,
	HandlerType: (*PeerServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    packet.StreamName,
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "gophmaster/transport.proto",
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(PeerServer).Connect(stream)
}

const shutdownGrace = 5 * time.Second

type GRPCServer struct {
	address string
	auth    *services.AuthService
	logger  logging.Logger
}

func NewGRPCServer(a string, l logging.Logger, auth *services.AuthService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    auth,
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)
	return s.Serve(ctx, listen)
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainStreamInterceptor(s.recoveryInterceptor, s.loggingInterceptor))
	srv.RegisterService(&peerServiceDesc, s)
	return srv
}

// Serve accepts peers on lis until ctx is done.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")

		// peers hold their streams open, so graceful stop gets a deadline
		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownGrace):
			srv.Stop()
		}
	}()

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}

// frameWriter serializes sends on a stream shared by concurrent handlers.
type frameWriter struct {
	mu     sync.Mutex
	stream grpc.ServerStream
}

func (w *frameWriter) write(f *packet.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stream.SendMsg(wrapperspb.Bytes(data))
}

// Connect serves one peer for the lifetime of its stream. Handshakes are
// answered in order; every other request runs on its own goroutine. The
// peer is closed only after all of its requests have been answered.
func (s *GRPCServer) Connect(stream grpc.ServerStream) error {
	ctx := stream.Context()
	conn := peer.NewConn(uuid.NewString())
	w := &frameWriter{stream: stream}

	var wg sync.WaitGroup
	defer func() {
		wg.Wait()
		conn.Close()
		s.logger.Debug(ctx, "peer closed", "peer", conn.ID())
	}()

	for {
		in := &wrapperspb.BytesValue{}
		if err := stream.RecvMsg(in); err != nil {
			if errors.Is(err, io.EOF) || status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}

		f, err := packet.DecodeFrame(in.GetValue())
		if err != nil {
			s.logger.Warn(ctx, "dropping malformed frame", "peer", conn.ID(), "error", err)
			continue
		}

		if f.Op == packet.OpHandshake {
			if err := w.write(s.handshake(ctx, conn, f)); err != nil {
				return err
			}
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := w.write(s.serveFrame(ctx, conn, f)); err != nil {
				s.logger.Debug(ctx, "response not delivered", "peer", conn.ID(), "op", f.Op, "error", err)
			}
		}()
	}
}
