// Package services contains server-side business logic. This file holds
// AuthService, which authenticates peers, keeps the session table in sync
// with connections and runs the account lifecycle operations.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/cryptox"
	"github.com/dmitrijs2005/gophmaster/internal/logging"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
	"github.com/dmitrijs2005/gophmaster/internal/server/events"
	"github.com/dmitrijs2005/gophmaster/internal/server/mail"
	"github.com/dmitrijs2005/gophmaster/internal/server/models"
	"github.com/dmitrijs2005/gophmaster/internal/server/peer"
	"github.com/dmitrijs2005/gophmaster/internal/server/sessions"
	"github.com/dmitrijs2005/gophmaster/internal/server/store"
	"github.com/dmitrijs2005/gophmaster/internal/server/validation"
)

// ExtensionName is the peer extension slot holding *AuthExtension.
const ExtensionName = "auth"

const (
	guestSuffixLength       = 8
	guestNameAttempts       = 5
	codeLength              = validation.CodeLength
	generatedPasswordLength = 10
)

// TokenCodec mints and checks remember-me tokens.
type TokenCodec interface {
	Mint(ctx context.Context, account *models.Account) (string, error)
	Validate(token, deviceID, deviceName string) bool
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encoded string) (bool, error)
}

// Deps are the collaborators of AuthService. All are required.
type Deps struct {
	Store     store.AccountStore
	Tokens    TokenCodec
	Validator *validation.Validator
	Sessions  *sessions.Table
	Events    *events.Bus
	Mailer    mail.Mailer
	Hasher    PasswordHasher
	Log       logging.Logger
}

type Settings struct {
	GuestLoginEnabled    bool
	GuestPrefix          string
	EmailConfirmRequired bool
}

// AuthExtension marks a peer as authenticated. It is attached to the peer
// by a successful sign-in and removed by sign-out.
type AuthExtension struct {
	Session     *sessions.Session
	unsubscribe func()
}

type AuthService struct {
	store     store.AccountStore
	tokens    TokenCodec
	validator *validation.Validator
	sessions  *sessions.Table
	events    *events.Bus
	mailer    mail.Mailer
	hasher    PasswordHasher
	log       logging.Logger
	settings  Settings

	// background tracks fire-and-forget store writes.
	background sync.WaitGroup
}

func NewAuthService(d Deps, s Settings) *AuthService {
	return &AuthService{
		store:     d.Store,
		tokens:    d.Tokens,
		validator: d.Validator,
		sessions:  d.Sessions,
		events:    d.Events,
		mailer:    d.Mailer,
		hasher:    d.Hasher,
		log:       d.Log.With("module", "auth"),
		settings:  s,
	}
}

// Wait blocks until background account writes have finished.
func (s *AuthService) Wait() {
	s.background.Wait()
}

// Extension returns the authentication extension of p, if any.
func Extension(p peer.Peer) (*AuthExtension, bool) {
	v, ok := p.Extension(ExtensionName)
	if !ok {
		return nil, false
	}
	ext, ok := v.(*AuthExtension)
	return ext, ok
}

func (s *AuthService) requireSession(p peer.Peer) (*sessions.Session, error) {
	ext, ok := Extension(p)
	if !ok {
		return nil, fmt.Errorf("%w: peer is not signed in", common.ErrorUnauthorized)
	}
	return ext.Session, nil
}

// openBundle decrypts a credential bundle with the key negotiated for p.
func openBundle(p peer.Peer, sealed []byte) (packet.Properties, error) {
	key := p.Key()
	if len(key) == 0 {
		return nil, common.ErrNoSessionKey
	}
	props := packet.Properties{}
	if err := cryptox.DecryptEntry(sealed, key, &props); err != nil {
		return nil, fmt.Errorf("%w: unreadable credential bundle", common.ErrValidation)
	}
	return props, nil
}

// failed marks a dependency error. Not-found errors pass through untouched.
func failed(op string, err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", common.ErrFailed, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{common.ErrValidation}, args...)...)
}

// StatusOf maps an operation error onto the response status sent to the
// client.
func StatusOf(err error) packet.Status {
	switch {
	case err == nil:
		return packet.StatusSuccess
	case errors.Is(err, common.ErrValidation):
		return packet.StatusInvalid
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrNoSessionKey):
		return packet.StatusUnauthorized
	case errors.Is(err, common.ErrTokenExpired):
		return packet.StatusTokenExpired
	case errors.Is(err, common.ErrFailed):
		return packet.StatusFailed
	case errors.Is(err, common.ErrorNotFound):
		return packet.StatusNotFound
	}
	return packet.StatusError
}
