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

// SignUp registers a full account from the sealed bundle (username,
// password, email). A peer signed in as a guest has its guest account
// upgraded in place; otherwise a new account is created. SignUp never
// authenticates the peer.
func (s *AuthService) SignUp(ctx context.Context, p peer.Peer, sealed []byte) (*packet.AccountInfo, error) {
	props, err := openBundle(p, sealed)
	if err != nil {
		return nil, err
	}

	username := props.Get(packet.KeyUsername)
	password := props.Get(packet.KeyPassword)
	email := strings.TrimSpace(props.Get(packet.KeyEmail))

	if err := s.validator.ValidatePassword(password); err != nil {
		return nil, invalid("password: %v", err)
	}
	if err := s.validator.ValidateUsername(username); err != nil {
		return nil, invalid("username: %v", err)
	}
	if s.isGuestName(username) {
		return nil, invalid("username: prefix %q is reserved", s.settings.GuestPrefix)
	}
	if err := s.validator.ValidateEmail(email); err != nil {
		return nil, invalid("email: %v", err)
	}

	if err := s.ensureFree(ctx, username, email); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	var sess *sessions.Session
	if ext, ok := Extension(p); ok && ext.Session.Account().IsGuest {
		sess = ext.Session
	}

	var acc *models.Account
	if sess != nil {
		acc = sess.Account().Clone()
	} else {
		acc = s.store.CreateAccountInstance()
	}
	acc.Username = username
	acc.Email = email
	acc.PasswordHash = hash
	acc.IsGuest = false
	acc.IsEmailConfirmed = !s.settings.EmailConfirmRequired

	if sess != nil {
		if err := s.store.UpdateAccount(ctx, acc); err != nil {
			return nil, failed("upgrade guest", err)
		}
		sess.SetAccount(acc)
	} else {
		if _, err := s.store.InsertAccount(ctx, acc); err != nil {
			return nil, failed("insert account", err)
		}
	}

	s.log.Info(ctx, "account registered", "account", acc.ID, "upgraded", sess != nil)
	s.events.Publish(ctx, events.Event{Kind: events.Registered, Account: acc.Clone(), PeerID: p.ID()})

	return acc.Info(false), nil
}

func (s *AuthService) isGuestName(username string) bool {
	prefix := s.settings.GuestPrefix
	return prefix != "" && strings.HasPrefix(strings.ToLower(username), strings.ToLower(prefix))
}

func (s *AuthService) ensureFree(ctx context.Context, username, email string) error {
	_, err := s.store.GetAccountByUsername(ctx, username)
	switch {
	case err == nil:
		return fmt.Errorf("%w: username %s is taken", common.ErrFailed, username)
	case !errors.Is(err, common.ErrorNotFound):
		return failed("lookup username", err)
	}

	_, err = s.store.GetAccountByEmail(ctx, email)
	switch {
	case err == nil:
		return fmt.Errorf("%w: email is taken", common.ErrFailed)
	case !errors.Is(err, common.ErrorNotFound):
		return failed("lookup email", err)
	}
	return nil
}

// RequestPasswordResetCode stores a new reset code for the account behind
// email and mails it. The stored code stays valid even if mailing fails.
func (s *AuthService) RequestPasswordResetCode(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if !s.validator.IsEmailValid(email) {
		return invalid("malformed email")
	}

	if _, err := s.store.GetAccountByEmail(ctx, email); err != nil {
		return failed("lookup account", err)
	}

	code, err := common.RandomString(common.AlphaNumeric, codeLength)
	if err != nil {
		return err
	}
	if err := s.store.SavePasswordResetCode(ctx, email, code); err != nil {
		return failed("save reset code", err)
	}

	msg, err := mail.PasswordResetCode(code)
	if err != nil {
		return err
	}
	if !s.mailer.SendMail(ctx, email, msg.Subject, msg.HTML) {
		return fmt.Errorf("%w: could not mail the reset code", common.ErrFailed)
	}
	return nil
}

// ChangePassword sets a new password after checking the mailed reset code.
// The code is consumed on success.
func (s *AuthService) ChangePassword(ctx context.Context, p peer.Peer, sealed []byte) error {
	props, err := openBundle(p, sealed)
	if err != nil {
		return err
	}

	email := strings.TrimSpace(props.Get(packet.KeyEmail))
	code := strings.TrimSpace(props.Get(packet.KeyCode))
	password := props.Get(packet.KeyPassword)

	if !s.validator.IsEmailValid(email) {
		return invalid("malformed email")
	}
	if !s.validator.IsCodeValid(code) {
		return invalid("malformed code")
	}
	if !s.validator.IsPasswordValid(password) {
		return invalid("password too weak")
	}

	ok, err := s.store.CheckPasswordResetCode(ctx, email, code)
	if err != nil {
		return failed("check reset code", err)
	}
	if !ok {
		return invalid("wrong or expired code")
	}

	var sess *sessions.Session
	var acc *models.Account
	if ext, found := Extension(p); found && strings.EqualFold(ext.Session.Account().Email, email) {
		sess = ext.Session
		acc = sess.Account().Clone()
	} else {
		acc, err = s.store.GetAccountByEmail(ctx, email)
		if err != nil {
			return failed("lookup account", err)
		}
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash

	if err := s.store.UpdateAccount(ctx, acc); err != nil {
		return failed("update account", err)
	}
	if sess != nil {
		sess.SetAccount(acc)
	}

	s.log.Info(ctx, "password changed", "account", acc.ID)
	return nil
}

// requireFullAccount returns the session of p if it belongs to a
// registered account with an email address.
func (s *AuthService) requireFullAccount(p peer.Peer) (*sessions.Session, error) {
	sess, err := s.requireSession(p)
	if err != nil {
		return nil, err
	}
	acc := sess.Account()
	if acc.IsGuest {
		return nil, fmt.Errorf("%w: guests have no email", common.ErrorUnauthorized)
	}
	if acc.Email == "" {
		return nil, invalid("account has no email")
	}
	return sess, nil
}

// RequestEmailConfirmationCode mails a confirmation code to the email of
// the signed-in account. Confirmed accounts get Success without a mail.
func (s *AuthService) RequestEmailConfirmationCode(ctx context.Context, p peer.Peer) error {
	sess, err := s.requireFullAccount(p)
	if err != nil {
		return err
	}
	acc := sess.Account()
	if acc.IsEmailConfirmed {
		return nil
	}

	code, err := common.RandomString(common.AlphaNumeric, codeLength)
	if err != nil {
		return err
	}
	if err := s.store.SaveEmailConfirmationCode(ctx, acc.Email, code); err != nil {
		return failed("save confirmation code", err)
	}

	msg, err := mail.EmailConfirmationCode(code)
	if err != nil {
		return err
	}
	if !s.mailer.SendMail(ctx, acc.Email, msg.Subject, msg.HTML) {
		return fmt.Errorf("%w: could not mail the confirmation code", common.ErrFailed)
	}
	return nil
}

// ConfirmEmail marks the email of the signed-in account as confirmed. The
// session snapshot changes immediately; the store write runs in the
// background. Confirming twice succeeds without touching the store.
func (s *AuthService) ConfirmEmail(ctx context.Context, p peer.Peer, code string) error {
	sess, err := s.requireFullAccount(p)
	if err != nil {
		return err
	}
	if sess.Account().IsEmailConfirmed {
		return nil
	}

	code = strings.TrimSpace(code)
	if !s.validator.IsCodeValid(code) {
		return invalid("malformed code")
	}

	acc := sess.Account().Clone()
	ok, err := s.store.CheckEmailConfirmationCode(ctx, acc.Email, code)
	if err != nil {
		return failed("check confirmation code", err)
	}
	if !ok {
		return invalid("wrong or expired code")
	}

	acc.IsEmailConfirmed = true
	sess.SetAccount(acc)

	s.background.Add(1)
	go func(ctx context.Context, id, email string) {
		defer s.background.Done()
		if err := s.persistEmailConfirmed(ctx, email); err != nil {
			s.log.Error(ctx, "persist email confirmation", "account", id, "error", err)
		}
	}(context.WithoutCancel(ctx), acc.ID, acc.Email)

	s.events.Publish(ctx, events.Event{Kind: events.EmailConfirmed, Account: acc.Clone(), PeerID: p.ID()})
	return nil
}

// persistEmailConfirmed sets the flag on a fresh copy of the stored row so
// writes committed since the confirmation are kept.
func (s *AuthService) persistEmailConfirmed(ctx context.Context, email string) error {
	acc, err := s.store.GetAccountByEmail(ctx, email)
	if err != nil {
		return err
	}
	if acc.IsEmailConfirmed {
		return nil
	}
	acc.IsEmailConfirmed = true
	return s.store.UpdateAccount(ctx, acc)
}

// AccountInfoByPeer describes the account p is signed in with.
func (s *AuthService) AccountInfoByPeer(_ context.Context, p peer.Peer) (*packet.AccountInfo, error) {
	sess, err := s.requireSession(p)
	if err != nil {
		return nil, err
	}
	return sess.Account().Info(false), nil
}

// AccountInfoByUsername describes any account. Online accounts are read
// from their session, others from the store.
func (s *AuthService) AccountInfoByUsername(ctx context.Context, username string) (*packet.AccountInfo, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, invalid("username required")
	}

	if sess, ok := s.sessions.GetByUsername(username); ok {
		return sess.Account().Info(false), nil
	}

	acc, err := s.store.GetAccountByUsername(ctx, username)
	if err != nil {
		return nil, failed("lookup account", err)
	}
	return acc.Info(false), nil
}

// BindExtraProperties upserts props into the extra properties of the
// signed-in account.
func (s *AuthService) BindExtraProperties(ctx context.Context, p peer.Peer, props packet.Properties) (*packet.AccountInfo, error) {
	sess, err := s.requireSession(p)
	if err != nil {
		return nil, err
	}
	if len(props) == 0 {
		return nil, invalid("no properties")
	}
	for k := range props {
		if strings.TrimSpace(k) == "" {
			return nil, invalid("empty property key")
		}
	}

	acc := sess.Account().Clone()
	acc.SetProperties(props)

	if err := s.store.UpdateAccount(ctx, acc); err != nil {
		return nil, failed("update account", err)
	}
	sess.SetAccount(acc)

	return acc.Info(false), nil
}
