// Package tokens issues and checks the opaque remember-me tokens handed to
// clients after a successful sign-in.
//
// A token has the form <payload>.<signature>. The payload is the JSON claim
// set sealed with AES-256-GCM and base64url encoded; the signature is an
// HMAC-SHA256 of the encoded payload. Both keys are derived from one shared
// secret.
package tokens

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/cryptox"
	"github.com/dmitrijs2005/gophmaster/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

const (
	encKeyInfo = "gophmaster token encryption"
	macKeyInfo = "gophmaster token signature"
)

// b64 rejects non-canonical encodings so every flipped character counts.
var b64 = base64.RawURLEncoding.Strict()

var (
	ErrSecretRequired  = errors.New("token secret is required")
	ErrInvalidLifetime = errors.New("token lifetime must be positive")
)

// TokenStore persists the latest token of an account.
type TokenStore interface {
	InsertOrUpdateToken(ctx context.Context, accountID, token string) error
}

type Options struct {
	Secret   []byte
	Issuer   string
	Audience string
	Lifetime time.Duration

	// Now overrides the clock; nil means time.Now.
	Now func() time.Time
}

// Claims is the payload sealed inside a token.
type Claims struct {
	jwt.RegisteredClaims
	Username   string `json:"usr"`
	DeviceID   string `json:"did"`
	DeviceName string `json:"dnm"`
}

type Codec struct {
	encKey   []byte
	macKey   []byte
	issuer   string
	audience string
	lifetime time.Duration
	store    TokenStore
	now      func() time.Time
}

func NewCodec(opts Options, store TokenStore) (*Codec, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrSecretRequired
	}
	if opts.Lifetime <= 0 {
		return nil, ErrInvalidLifetime
	}

	encKey, err := cryptox.DeriveKey(opts.Secret, encKeyInfo, 32)
	if err != nil {
		return nil, err
	}
	macKey, err := cryptox.DeriveKey(opts.Secret, macKeyInfo, 32)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Codec{
		encKey:   encKey,
		macKey:   macKey,
		issuer:   opts.Issuer,
		audience: opts.Audience,
		lifetime: opts.Lifetime,
		store:    store,
		now:      now,
	}, nil
}

// Mint issues a token for account bound to its current device, stores it
// and writes it into account.Token.
func (c *Codec) Mint(ctx context.Context, account *models.Account) (string, error) {
	now := c.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID,
			Issuer:    c.issuer,
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.lifetime)),
		},
		Username:   account.Username,
		DeviceID:   account.DeviceID,
		DeviceName: account.DeviceName,
	}

	token, err := c.encode(claims)
	if err != nil {
		return "", err
	}

	if err := c.store.InsertOrUpdateToken(ctx, account.ID, token); err != nil {
		return "", fmt.Errorf("store token: %w", err)
	}

	account.Token = token
	return token, nil
}

// Validate reports whether token is authentic, unexpired, issued by this
// server for this audience and bound to the given device. Every failure,
// including malformed input, yields false.
func (c *Codec) Validate(token, deviceID, deviceName string) bool {
	claims, err := c.decode(token)
	if err != nil {
		return false
	}

	v := jwt.NewValidator(
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err := v.Validate(claims); err != nil {
		return false
	}

	return claims.DeviceID == deviceID && claims.DeviceName == deviceName
}

func (c *Codec) encode(claims *Claims) (string, error) {
	sealed, err := cryptox.EncryptEntry(claims, c.encKey)
	if err != nil {
		return "", err
	}
	payload := b64.EncodeToString(sealed)
	return payload + "." + c.sign(payload), nil
}

func (c *Codec) decode(token string) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return nil, errors.New("malformed token")
	}

	sig, err := b64.DecodeString(parts[1])
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(sig, c.mac(parts[0])) {
		return nil, errors.New("bad signature")
	}

	sealed, err := b64.DecodeString(parts[0])
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	if err := cryptox.DecryptEntry(sealed, c.encKey, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *Codec) mac(payload string) []byte {
	h := hmac.New(sha256.New, c.macKey)
	h.Write([]byte(payload))
	return h.Sum(nil)
}

func (c *Codec) sign(payload string) string {
	return b64.EncodeToString(c.mac(payload))
}
