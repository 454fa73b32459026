package client

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/gophmaster/internal/cryptox"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
)

// withDevice adds the client's device identity to props.
func (c *GRPCClient) withDevice(props packet.Properties) packet.Properties {
	if c.DeviceID != "" {
		props[packet.KeyDeviceID] = c.DeviceID
	}
	if c.DeviceName != "" {
		props[packet.KeyDeviceName] = c.DeviceName
	}
	return props
}

func (c *GRPCClient) sealed(props packet.Properties) ([]byte, error) {
	key, err := c.sessionKey()
	if err != nil {
		return nil, err
	}
	return cryptox.EncryptEntry(props, key)
}

// sealedCall sends props sealed and opens a sealed AccountInfo reply. An
// empty reply yields nil info.
func (c *GRPCClient) sealedCall(ctx context.Context, op packet.OpCode, props packet.Properties) (*packet.AccountInfo, error) {
	body, err := c.sealed(props)
	if err != nil {
		return nil, err
	}

	resp, err := c.call(ctx, op, body)
	if err != nil || len(resp) == 0 {
		return nil, err
	}

	key, err := c.sessionKey()
	if err != nil {
		return nil, err
	}
	info := &packet.AccountInfo{}
	if err := cryptox.DecryptEntry(resp, key, info); err != nil {
		return nil, err
	}
	return info, nil
}

func (c *GRPCClient) plainCall(ctx context.Context, op packet.OpCode, props packet.Properties) ([]byte, error) {
	var body []byte
	if props != nil {
		var err error
		if body, err = props.Encode(); err != nil {
			return nil, err
		}
	}
	return c.call(ctx, op, body)
}

func (c *GRPCClient) infoCall(ctx context.Context, op packet.OpCode, props packet.Properties) (*packet.AccountInfo, error) {
	resp, err := c.plainCall(ctx, op, props)
	if err != nil {
		return nil, err
	}
	return packet.DecodeAccountInfo(resp)
}

// SignInAsGuest creates a throwaway guest account and signs in with it.
func (c *GRPCClient) SignInAsGuest(ctx context.Context) (*packet.AccountInfo, error) {
	return c.sealedCall(ctx, packet.OpSignIn, c.withDevice(packet.Properties{packet.KeyGuest: "true"}))
}

// SignInWithPassword signs in with a username and password. With remember
// set the reply carries a token for SignInWithToken.
func (c *GRPCClient) SignInWithPassword(ctx context.Context, username, password string, remember bool) (*packet.AccountInfo, error) {
	return c.sealedCall(ctx, packet.OpSignIn, c.withDevice(packet.Properties{
		packet.KeyUsername: username,
		packet.KeyPassword: password,
		packet.KeyRemember: strconv.FormatBool(remember),
	}))
}

// SignInWithToken resumes a remembered session. The reply carries the
// rotated token.
func (c *GRPCClient) SignInWithToken(ctx context.Context, token string) (*packet.AccountInfo, error) {
	return c.sealedCall(ctx, packet.OpSignIn, c.withDevice(packet.Properties{packet.KeyToken: token}))
}

// SignInWithEmail asks the server to mail a fresh password for email. The
// client stays signed out.
func (c *GRPCClient) SignInWithEmail(ctx context.Context, email string) error {
	_, err := c.sealedCall(ctx, packet.OpSignIn, c.withDevice(packet.Properties{packet.KeyEmail: email}))
	return err
}

// SignUp registers a full account. A client signed in as a guest upgrades
// that account instead.
func (c *GRPCClient) SignUp(ctx context.Context, username, email, password string) (*packet.AccountInfo, error) {
	return c.sealedCall(ctx, packet.OpSignUp, packet.Properties{
		packet.KeyUsername: username,
		packet.KeyEmail:    email,
		packet.KeyPassword: password,
	})
}

func (c *GRPCClient) SignOut(ctx context.Context) error {
	_, err := c.call(ctx, packet.OpSignOut, nil)
	return err
}

func (c *GRPCClient) RequestPasswordResetCode(ctx context.Context, email string) error {
	_, err := c.plainCall(ctx, packet.OpGetPasswordResetCode, packet.Properties{packet.KeyEmail: email})
	return err
}

// ChangePassword sets a new password using a mailed reset code.
func (c *GRPCClient) ChangePassword(ctx context.Context, email, code, password string) error {
	body, err := c.sealed(packet.Properties{
		packet.KeyEmail:    email,
		packet.KeyCode:     code,
		packet.KeyPassword: password,
	})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, packet.OpChangePassword, body)
	return err
}

func (c *GRPCClient) RequestEmailConfirmationCode(ctx context.Context) error {
	_, err := c.call(ctx, packet.OpGetEmailConfirmationCode, nil)
	return err
}

func (c *GRPCClient) ConfirmEmail(ctx context.Context, code string) error {
	_, err := c.plainCall(ctx, packet.OpConfirmEmail, packet.Properties{packet.KeyCode: code})
	return err
}

// BindExtraProperties merges props into the signed-in account.
func (c *GRPCClient) BindExtraProperties(ctx context.Context, props map[string]string) (*packet.AccountInfo, error) {
	return c.infoCall(ctx, packet.OpBindExtraProperties, packet.Properties(props))
}

// AccountInfo describes the signed-in account.
func (c *GRPCClient) AccountInfo(ctx context.Context) (*packet.AccountInfo, error) {
	return c.infoCall(ctx, packet.OpGetAccountInfoByPeer, nil)
}

func (c *GRPCClient) AccountInfoByUsername(ctx context.Context, username string) (*packet.AccountInfo, error) {
	return c.infoCall(ctx, packet.OpGetAccountInfoByUsername, packet.Properties{packet.KeyUsername: username})
}
