package grpc

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/cryptox"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
	"github.com/dmitrijs2005/gophmaster/internal/server/peer"
	"github.com/dmitrijs2005/gophmaster/internal/server/services"
)

// handshake agrees a session key with the peer. A peer gets exactly one.
func (s *GRPCServer) handshake(ctx context.Context, conn *peer.Conn, f *packet.Frame) *packet.Frame {
	if conn.Key() != nil {
		return f.Reply(packet.StatusFailed, nil)
	}

	req, err := packet.DecodeHandshake(f.Body)
	if err != nil {
		return f.Reply(packet.StatusInvalid, nil)
	}

	kp, err := cryptox.NewKeyPair()
	if err != nil {
		s.logger.Error(ctx, "generate key pair", "error", err)
		return f.Reply(packet.StatusError, nil)
	}

	key, err := kp.SharedKey(req.PublicKey, cryptox.SessionKeyInfo)
	if err != nil {
		return f.Reply(packet.StatusInvalid, nil)
	}

	body, err := (&packet.Handshake{PublicKey: kp.Public}).Encode()
	if err != nil {
		return f.Reply(packet.StatusError, nil)
	}

	conn.SetKey(key)
	s.logger.Debug(ctx, "handshake complete", "peer", conn.ID())
	return f.Reply(packet.StatusSuccess, body)
}

// serveFrame runs one request and turns its outcome into a response frame.
func (s *GRPCServer) serveFrame(ctx context.Context, conn *peer.Conn, f *packet.Frame) (resp *packet.Frame) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, "request handler panic", "peer", conn.ID(), "op", f.Op, "panic", fmt.Sprint(r))
			resp = f.Reply(packet.StatusError, nil)
		}
	}()

	body, err := s.dispatch(ctx, conn, f)
	if err != nil {
		st := services.StatusOf(err)
		if st == packet.StatusError {
			s.logger.Error(ctx, "request failed", "peer", conn.ID(), "op", f.Op, "error", err)
		} else {
			s.logger.Debug(ctx, "request rejected", "peer", conn.ID(), "op", f.Op, "status", st, "error", err)
		}
		return f.Reply(st, nil)
	}
	return f.Reply(packet.StatusSuccess, body)
}

func (s *GRPCServer) dispatch(ctx context.Context, conn *peer.Conn, f *packet.Frame) ([]byte, error) {
	switch f.Op {
	case packet.OpSignIn:
		return sealed(conn)(s.auth.SignIn(ctx, conn, f.Body))

	case packet.OpSignUp:
		return sealed(conn)(s.auth.SignUp(ctx, conn, f.Body))

	case packet.OpSignOut:
		return nil, s.auth.SignOut(ctx, conn)

	case packet.OpGetPasswordResetCode:
		props, err := properties(f.Body)
		if err != nil {
			return nil, err
		}
		return nil, s.auth.RequestPasswordResetCode(ctx, props.Get(packet.KeyEmail))

	case packet.OpChangePassword:
		return nil, s.auth.ChangePassword(ctx, conn, f.Body)

	case packet.OpGetEmailConfirmationCode:
		return nil, s.auth.RequestEmailConfirmationCode(ctx, conn)

	case packet.OpConfirmEmail:
		props, err := properties(f.Body)
		if err != nil {
			return nil, err
		}
		return nil, s.auth.ConfirmEmail(ctx, conn, props.Get(packet.KeyCode))

	case packet.OpGetAccountInfoByPeer:
		return plain(s.auth.AccountInfoByPeer(ctx, conn))

	case packet.OpGetAccountInfoByUsername:
		props, err := properties(f.Body)
		if err != nil {
			return nil, err
		}
		return plain(s.auth.AccountInfoByUsername(ctx, props.Get(packet.KeyUsername)))

	case packet.OpBindExtraProperties:
		props, err := properties(f.Body)
		if err != nil {
			return nil, err
		}
		return plain(s.auth.BindExtraProperties(ctx, conn, props))
	}

	return nil, fmt.Errorf("%w: unsupported op %s", common.ErrValidation, f.Op)
}

func properties(body []byte) (packet.Properties, error) {
	props, err := packet.DecodeProperties(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return props, nil
}

// plain encodes info as is. A nil info yields an empty body.
func plain(info *packet.AccountInfo, err error) ([]byte, error) {
	if err != nil || info == nil {
		return nil, err
	}
	return info.Encode()
}

// sealed encodes info under the peer's session key, since it may carry a
// session token.
func sealed(conn *peer.Conn) func(*packet.AccountInfo, error) ([]byte, error) {
	return func(info *packet.AccountInfo, err error) ([]byte, error) {
		if err != nil || info == nil {
			return nil, err
		}
		return cryptox.EncryptEntry(info, conn.Key())
	}
}
