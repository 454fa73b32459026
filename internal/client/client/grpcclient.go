package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dmitrijs2005/gophmaster/internal/cryptox"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

var connectDesc = &grpc.StreamDesc{
	StreamName:    packet.StreamName,
	ServerStreams: true,
	ClientStreams: true,
}

type GRPCClient struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	sendMu sync.Mutex

	mu      sync.Mutex
	pending map[uint32]chan *packet.Frame
	nextID  uint32
	key     []byte
	recvErr error
	done    chan struct{}

	// Device identifies this installation to the server. It is bound into
	// remembered session tokens.
	DeviceID   string
	DeviceName string
}

// Dial connects to addr and opens the peer stream. Extra options are
// applied after the default insecure transport credentials.
func Dial(ctx context.Context, addr string, opts ...grpc.DialOption) (*GRPCClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, err
	}

	// the stream outlives ctx, which only bounds the dial
	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := conn.NewStream(streamCtx, connectDesc, packet.ConnectMethod)
	if err != nil {
		cancel()
		_ = conn.Close()
		return nil, mapError(err)
	}

	c := &GRPCClient{
		conn:    conn,
		stream:  stream,
		cancel:  cancel,
		pending: make(map[uint32]chan *packet.Frame),
		done:    make(chan struct{}),
	}
	go c.receive()

	return c, nil
}

func (c *GRPCClient) receive() {
	var err error
	for {
		in := &wrapperspb.BytesValue{}
		if err = c.stream.RecvMsg(in); err != nil {
			break
		}

		f, derr := packet.DecodeFrame(in.GetValue())
		if derr != nil {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[f.ID]
		delete(c.pending, f.ID)
		c.mu.Unlock()

		if ok {
			ch <- f
		}
	}

	c.mu.Lock()
	c.recvErr = err
	c.mu.Unlock()
	close(c.done)
}

// Request sends one frame and waits for its response. The returned frame
// may carry any status.
func (c *GRPCClient) Request(ctx context.Context, op packet.OpCode, body []byte) (*packet.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := make(chan *packet.Frame, 1)

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	forget := func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}

	data, err := (&packet.Frame{Op: op, ID: id, Body: body}).Encode()
	if err != nil {
		forget()
		return nil, err
	}

	c.sendMu.Lock()
	err = c.stream.SendMsg(wrapperspb.Bytes(data))
	c.sendMu.Unlock()
	if err != nil {
		forget()
		return nil, mapError(err)
	}

	select {
	case f := <-ch:
		return f, nil
	case <-ctx.Done():
		forget()
		return nil, ctx.Err()
	case <-c.done:
		forget()
		return nil, c.streamError()
	}
}

func (c *GRPCClient) streamError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.recvErr == nil || errors.Is(c.recvErr, io.EOF) {
		return ErrClosed
	}
	return mapError(c.recvErr)
}

// call is Request followed by a status check.
func (c *GRPCClient) call(ctx context.Context, op packet.OpCode, body []byte) ([]byte, error) {
	f, err := c.Request(ctx, op, body)
	if err != nil {
		return nil, err
	}
	if f.Status != packet.StatusSuccess {
		return nil, &StatusError{Op: op, Status: f.Status}
	}
	return f.Body, nil
}

// Handshake agrees a session key with the server. It must precede any
// request that carries credentials.
func (c *GRPCClient) Handshake(ctx context.Context) error {
	kp, err := cryptox.NewKeyPair()
	if err != nil {
		return err
	}

	body, err := (&packet.Handshake{PublicKey: kp.Public}).Encode()
	if err != nil {
		return err
	}

	resp, err := c.call(ctx, packet.OpHandshake, body)
	if err != nil {
		return err
	}

	hs, err := packet.DecodeHandshake(resp)
	if err != nil {
		return fmt.Errorf("decode handshake: %w", err)
	}

	key, err := kp.SharedKey(hs.PublicKey, cryptox.SessionKeyInfo)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.key = key
	c.mu.Unlock()
	return nil
}

func (c *GRPCClient) sessionKey() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key == nil {
		return nil, ErrNoSessionKey
	}
	return c.key, nil
}

// Close ends the stream and the underlying connection. The server treats
// this as a disconnect and ends any session.
func (c *GRPCClient) Close() error {
	c.sendMu.Lock()
	_ = c.stream.CloseSend()
	c.sendMu.Unlock()

	c.cancel()
	return c.conn.Close()
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return ErrUnavailable
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
