package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
	"github.com/dmitrijs2005/gophmaster/internal/server/events"
	"github.com/dmitrijs2005/gophmaster/internal/server/mail"
	"github.com/dmitrijs2005/gophmaster/internal/server/models"
	"github.com/dmitrijs2005/gophmaster/internal/server/peer"
	"github.com/dmitrijs2005/gophmaster/internal/server/sessions"
)

// SignIn authenticates p with the sealed credential bundle. The strategy is
// picked by the fields present, in this order: guest flag, token,
// username with password, email alone.
//
// The email strategy resets the account password and mails it; it returns
// nil info and leaves the peer unauthenticated.
func (s *AuthService) SignIn(ctx context.Context, p peer.Peer, sealed []byte) (*packet.AccountInfo, error) {
	if _, ok := Extension(p); ok {
		return nil, fmt.Errorf("%w: peer is already signed in", common.ErrFailed)
	}

	props, err := openBundle(p, sealed)
	if err != nil {
		return nil, err
	}

	switch {
	case props.Bool(packet.KeyGuest):
		return s.signInGuest(ctx, p, props)
	case props.Has(packet.KeyToken):
		return s.signInToken(ctx, p, props)
	case props.Has(packet.KeyUsername) && props.Has(packet.KeyPassword):
		return s.signInPassword(ctx, p, props)
	case props.Has(packet.KeyEmail):
		return nil, s.signInEmail(ctx, props)
	}

	return nil, invalid("unrecognised credential bundle")
}

func (s *AuthService) signInGuest(ctx context.Context, p peer.Peer, props packet.Properties) (*packet.AccountInfo, error) {
	if !s.settings.GuestLoginEnabled {
		return nil, fmt.Errorf("%w: guest login is disabled", common.ErrorUnauthorized)
	}

	username, err := s.newGuestName(ctx)
	if err != nil {
		return nil, err
	}

	acc := s.store.CreateAccountInstance()
	acc.Username = username
	acc.IsGuest = true
	acc.DeviceID = props.Get(packet.KeyDeviceID)
	acc.DeviceName = props.Get(packet.KeyDeviceName)

	if _, err := s.store.InsertAccount(ctx, acc); err != nil {
		return nil, failed("insert guest", err)
	}
	if _, err := s.tokens.Mint(ctx, acc); err != nil {
		return nil, failed("mint token", err)
	}

	return s.finalize(ctx, p, acc, nil)
}

func (s *AuthService) newGuestName(ctx context.Context) (string, error) {
	for i := 0; i < guestNameAttempts; i++ {
		suffix, err := common.RandomString(common.LowerAlphaNumeric, guestSuffixLength)
		if err != nil {
			return "", err
		}
		name := s.settings.GuestPrefix + suffix

		_, err = s.store.GetAccountByUsername(ctx, name)
		if errors.Is(err, common.ErrorNotFound) {
			return name, nil
		}
		if err != nil {
			return "", failed("lookup guest name", err)
		}
	}
	return "", fmt.Errorf("%w: no free guest name", common.ErrFailed)
}

func (s *AuthService) signInToken(ctx context.Context, p peer.Peer, props packet.Properties) (*packet.AccountInfo, error) {
	token := props.Get(packet.KeyToken)
	deviceID := props.Get(packet.KeyDeviceID)
	deviceName := props.Get(packet.KeyDeviceName)

	if !s.tokens.Validate(token, deviceID, deviceName) {
		return nil, common.ErrTokenExpired
	}

	acc, err := s.store.GetAccountByToken(ctx, token)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, invalid("token is not bound to an account")
	}
	if err != nil {
		return nil, failed("lookup token", err)
	}

	if s.sessions.IsLoggedInByUsername(acc.Username) {
		return nil, fmt.Errorf("%w: %s is already signed in", common.ErrFailed, acc.Username)
	}

	return s.finalize(ctx, p, acc, func(acc *models.Account) error {
		acc.DeviceID = deviceID
		acc.DeviceName = deviceName
		if _, err := s.tokens.Mint(ctx, acc); err != nil {
			return failed("mint token", err)
		}
		if err := s.store.UpdateAccount(ctx, acc); err != nil {
			return failed("update account", err)
		}
		return nil
	})
}

func (s *AuthService) signInPassword(ctx context.Context, p peer.Peer, props packet.Properties) (*packet.AccountInfo, error) {
	username := strings.TrimSpace(props.Get(packet.KeyUsername))
	password := props.Get(packet.KeyPassword)

	if s.sessions.IsLoggedInByUsername(username) {
		return nil, fmt.Errorf("%w: %s is already signed in", common.ErrFailed, username)
	}

	acc, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, failed("lookup account", err)
	}

	if acc.PasswordHash == "" {
		return nil, invalid("account has no password")
	}
	ok, err := s.hasher.Verify(password, acc.PasswordHash)
	if err != nil || !ok {
		return nil, invalid("wrong password")
	}

	return s.finalize(ctx, p, acc, func(acc *models.Account) error {
		acc.DeviceID = props.Get(packet.KeyDeviceID)
		acc.DeviceName = props.Get(packet.KeyDeviceName)
		if props.Bool(packet.KeyRemember) {
			if _, err := s.tokens.Mint(ctx, acc); err != nil {
				return failed("mint token", err)
			}
		}
		if err := s.store.UpdateAccount(ctx, acc); err != nil {
			return failed("update account", err)
		}
		return nil
	})
}

// signInEmail provisions the account behind an email address with a fresh
// random password and mails it to that address.
func (s *AuthService) signInEmail(ctx context.Context, props packet.Properties) error {
	email := strings.TrimSpace(props.Get(packet.KeyEmail))
	if !s.validator.IsEmailValid(email) {
		return invalid("malformed email")
	}

	if s.sessions.IsLoggedInByUsername(email) {
		return fmt.Errorf("%w: %s is already signed in", common.ErrFailed, email)
	}
	if _, ok := s.sessions.GetByEmail(email); ok {
		return fmt.Errorf("%w: %s is already signed in", common.ErrFailed, email)
	}

	acc, err := s.store.GetAccountByEmail(ctx, email)
	switch {
	case errors.Is(err, common.ErrorNotFound):
		acc = s.store.CreateAccountInstance()
		acc.Username = email
		acc.Email = email
		acc.IsEmailConfirmed = !s.settings.EmailConfirmRequired
		if _, err := s.store.InsertAccount(ctx, acc); err != nil {
			return failed("insert account", err)
		}
	case err != nil:
		return failed("lookup account", err)
	}

	password, err := common.RandomString(common.AlphaNumeric, generatedPasswordLength)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}

	acc.PasswordHash = hash
	acc.DeviceID = props.Get(packet.KeyDeviceID)
	acc.DeviceName = props.Get(packet.KeyDeviceName)
	if props.Bool(packet.KeyRemember) {
		if _, err := s.tokens.Mint(ctx, acc); err != nil {
			return failed("mint token", err)
		}
	}
	if err := s.store.UpdateAccount(ctx, acc); err != nil {
		return failed("update account", err)
	}

	msg, err := mail.GeneratedPassword(acc.Username, password)
	if err != nil {
		return err
	}
	if !s.mailer.SendMail(ctx, email, msg.Subject, msg.HTML) {
		return fmt.Errorf("%w: could not mail the new password", common.ErrFailed)
	}

	s.log.Info(ctx, "password issued by email", "account", acc.ID)
	return nil
}

// finalize registers the session, marks the peer authenticated and ties
// the session lifetime to the connection. The session table decides races
// between concurrent sign-ins of the same account: the loser gets Failed.
//
// persist, when set, runs on a clone of acc only after the session is
// registered, so a losing sign-in writes nothing to the store.
func (s *AuthService) finalize(ctx context.Context, p peer.Peer, acc *models.Account, persist func(*models.Account) error) (*packet.AccountInfo, error) {
	sess := sessions.New(p, acc)
	if !s.sessions.TryAdd(sess) {
		return nil, fmt.Errorf("%w: %s is already signed in", common.ErrFailed, acc.Username)
	}

	accountID, peerID := acc.ID, p.ID()

	if persist != nil {
		updated := acc.Clone()
		if err := persist(updated); err != nil {
			s.sessions.RemoveOwned(accountID, peerID)
			return nil, err
		}
		acc = updated
		sess.SetAccount(acc)
	}
	ext := &AuthExtension{Session: sess}
	ext.unsubscribe = p.OnDisconnect(func() {
		s.endSession(context.Background(), accountID, peerID)
	})

	if !p.AttachExtension(ExtensionName, ext) {
		ext.unsubscribe()
		s.sessions.RemoveOwned(accountID, peerID)
		return nil, fmt.Errorf("%w: peer is already signed in", common.ErrFailed)
	}

	s.log.Info(ctx, "signed in", "account", accountID, "peer", peerID, "guest", acc.IsGuest)
	s.events.Publish(ctx, events.Event{Kind: events.LoggedIn, Account: acc.Clone(), PeerID: peerID})

	return acc.Info(true), nil
}

// endSession unregisters the session of accountID held by peerID and
// announces the logout. It is a no-op when the session is already gone.
func (s *AuthService) endSession(ctx context.Context, accountID, peerID string) {
	sess, ok := s.sessions.RemoveOwned(accountID, peerID)
	if !ok {
		return
	}
	s.log.Info(ctx, "signed out", "account", accountID, "peer", peerID)
	s.events.Publish(ctx, events.Event{Kind: events.LoggedOut, Account: sess.Account().Clone(), PeerID: peerID})
}

// SignOut ends the session of p. Disconnecting has the same effect.
func (s *AuthService) SignOut(ctx context.Context, p peer.Peer) error {
	ext, ok := Extension(p)
	if !ok {
		return fmt.Errorf("%w: peer is not signed in", common.ErrorUnauthorized)
	}

	p.DetachExtension(ExtensionName)
	ext.unsubscribe()
	s.endSession(ctx, ext.Session.ID, p.ID())
	return nil
}
