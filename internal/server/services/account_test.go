package services

import (
	"context"
	"errors"
	"testing"

	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
	"github.com/dmitrijs2005/gophmaster/internal/server/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signUpProps(username, password, email string) packet.Properties {
	return packet.Properties{packet.KeyUsername: username, packet.KeyPassword: password, packet.KeyEmail: email}
}

func TestSignUp_CreatesAccount(t *testing.T) {
	f := newFixture(t, Settings{GuestPrefix: "guest_", EmailConfirmRequired: true})
	p := newPeer(t)

	info, err := f.svc.SignUp(context.Background(), p, seal(t, p, signUpProps("alice", "password1", "alice@example.com")))
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)
	assert.False(t, info.IsGuest)
	assert.False(t, info.IsEmailConfirmed)

	_, ok := Extension(p)
	assert.False(t, ok, "sign-up does not authenticate")
	assert.Equal(t, []events.Kind{events.Registered}, f.events.kinds())

	_, err = f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: "password1"})
	assert.NoError(t, err)
}

func TestSignUp_EmailConfirmedWhenNotRequired(t *testing.T) {
	f := newFixture(t, defaultSettings())
	p := newPeer(t)

	info, err := f.svc.SignUp(context.Background(), p, seal(t, p, signUpProps("alice", "password1", "alice@example.com")))
	require.NoError(t, err)
	assert.True(t, info.IsEmailConfirmed)
}

func TestSignUp_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		props packet.Properties
	}{
		{"short username", signUpProps("ab", "password1", "ab@example.com")},
		{"username with space", signUpProps("al ice", "password1", "alice@example.com")},
		{"reserved prefix", signUpProps("Guest_bob", "password1", "bob@example.com")},
		{"short password", signUpProps("alice", "short", "alice@example.com")},
		{"blank password", signUpProps("alice", "          ", "alice@example.com")},
		{"bad email", signUpProps("alice", "password1", "alice@")},
		{"missing email", signUpProps("alice", "password1", "")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, defaultSettings())
			p := newPeer(t)

			_, err := f.svc.SignUp(context.Background(), p, seal(t, p, tt.props))
			assert.Equal(t, packet.StatusInvalid, StatusOf(err))

			_, err = f.store.GetAccountByUsername(context.Background(), tt.props[packet.KeyUsername])
			assert.ErrorIs(t, err, common.ErrorNotFound, "nothing persisted")
			assert.Empty(t, f.events.kinds())
		})
	}
}

func TestSignUp_Taken(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.createAccount(t, "alice", "alice@example.com", "password1")
	p := newPeer(t)

	_, err := f.svc.SignUp(context.Background(), p, seal(t, p, signUpProps("ALICE", "password1", "other@example.com")))
	assert.Equal(t, packet.StatusFailed, StatusOf(err))

	_, err = f.svc.SignUp(context.Background(), p, seal(t, p, signUpProps("bob1", "password1", "Alice@example.com")))
	assert.Equal(t, packet.StatusFailed, StatusOf(err))
}

func TestSignUp_UpgradesGuest(t *testing.T) {
	f := newFixture(t, defaultSettings())
	p := newPeer(t)
	guest, err := f.signIn(t, p, packet.Properties{packet.KeyGuest: "true"})
	require.NoError(t, err)

	info, err := f.svc.SignUp(context.Background(), p, seal(t, p, signUpProps("alice", "password1", "alice@example.com")))
	require.NoError(t, err)
	assert.Equal(t, guest.ID, info.ID, "guest account is upgraded in place")
	assert.False(t, info.IsGuest)

	sess, ok := f.sessions.GetByID(guest.ID)
	require.True(t, ok)
	assert.Equal(t, "alice", sess.Account().Username)
	assert.False(t, sess.Account().IsGuest)

	stored, err := f.store.GetAccountByUsername(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, guest.ID, stored.ID)
	_, err = f.store.GetAccountByUsername(context.Background(), guest.Username)
	assert.ErrorIs(t, err, common.ErrorNotFound)
}

func TestSignUp_MissingKey(t *testing.T) {
	f := newFixture(t, defaultSettings())
	p := newPeer(t)
	bundle := seal(t, p, signUpProps("alice", "password1", "alice@example.com"))
	p.SetKey(nil)

	_, err := f.svc.SignUp(context.Background(), p, bundle)
	assert.Equal(t, packet.StatusUnauthorized, StatusOf(err))
}

func TestPasswordResetFlow(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.createAccount(t, "alice", "alice@example.com", "password1")
	ctx := context.Background()

	err := f.svc.RequestPasswordResetCode(ctx, "nobody@example.com")
	assert.Equal(t, packet.StatusNotFound, StatusOf(err))
	assert.Zero(t, f.mailer.count())

	require.NoError(t, f.svc.RequestPasswordResetCode(ctx, "alice@example.com"))
	code := f.mailer.lastSecret(t)
	assert.Len(t, code, codeLength)

	p := newPeer(t)
	change := packet.Properties{packet.KeyEmail: "alice@example.com", packet.KeyCode: code, packet.KeyPassword: "new-password"}
	require.NoError(t, f.svc.ChangePassword(ctx, p, seal(t, p, change)))

	err = f.svc.ChangePassword(ctx, p, seal(t, p, change))
	assert.Equal(t, packet.StatusInvalid, StatusOf(err), "codes are single use")

	_, err = f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: "password1"})
	assert.Equal(t, packet.StatusInvalid, StatusOf(err))
	_, err = f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: "new-password"})
	assert.NoError(t, err)
}

func TestPasswordsKeptAsTyped(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()

	p := newPeer(t)
	_, err := f.svc.SignUp(ctx, p, seal(t, p, signUpProps("alice", "password1 ", "alice@example.com")))
	require.NoError(t, err)

	_, err = f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: "password1 "})
	require.NoError(t, err)
	require.NoError(t, f.svc.SignOut(ctx, p))

	require.NoError(t, f.svc.RequestPasswordResetCode(ctx, "alice@example.com"))
	change := packet.Properties{packet.KeyEmail: "alice@example.com", packet.KeyCode: f.mailer.lastSecret(t), packet.KeyPassword: " new-password"}
	require.NoError(t, f.svc.ChangePassword(ctx, p, seal(t, p, change)))

	_, err = f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: " new-password"})
	assert.NoError(t, err)
}

func TestPasswordReset_MailFailureKeepsCode(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.createAccount(t, "alice", "alice@example.com", "password1")
	ctx := context.Background()

	f.mailer.fail = true
	err := f.svc.RequestPasswordResetCode(ctx, "alice@example.com")
	assert.Equal(t, packet.StatusFailed, StatusOf(err))
}

func TestChangePassword_Invalid(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.createAccount(t, "alice", "alice@example.com", "password1")
	require.NoError(t, f.svc.RequestPasswordResetCode(context.Background(), "alice@example.com"))
	code := f.mailer.lastSecret(t)
	p := newPeer(t)

	tests := []struct {
		name  string
		props packet.Properties
	}{
		{"missing code", packet.Properties{packet.KeyEmail: "alice@example.com", packet.KeyPassword: "new-password"}},
		{"wrong code", packet.Properties{packet.KeyEmail: "alice@example.com", packet.KeyCode: "ZZZZZZ", packet.KeyPassword: "new-password"}},
		{"weak password", packet.Properties{packet.KeyEmail: "alice@example.com", packet.KeyCode: code, packet.KeyPassword: "short"}},
		{"bad email", packet.Properties{packet.KeyEmail: "alice", packet.KeyCode: code, packet.KeyPassword: "new-password"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.svc.ChangePassword(context.Background(), p, seal(t, p, tt.props))
			assert.Equal(t, packet.StatusInvalid, StatusOf(err))
		})
	}

	// None of the rejected attempts consumed the code.
	ok := packet.Properties{packet.KeyEmail: "alice@example.com", packet.KeyCode: code, packet.KeyPassword: "new-password"}
	assert.NoError(t, f.svc.ChangePassword(context.Background(), p, seal(t, p, ok)))
}

func TestChangePassword_UpdatesSession(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.createAccount(t, "alice", "alice@example.com", "password1")
	p := newPeer(t)
	_, err := f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: "password1"})
	require.NoError(t, err)
	ext, _ := Extension(p)
	before := ext.Session.Account().PasswordHash

	require.NoError(t, f.svc.RequestPasswordResetCode(context.Background(), "alice@example.com"))
	change := packet.Properties{packet.KeyEmail: "alice@example.com", packet.KeyCode: f.mailer.lastSecret(t), packet.KeyPassword: "new-password"}
	require.NoError(t, f.svc.ChangePassword(context.Background(), p, seal(t, p, change)))

	assert.NotEqual(t, before, ext.Session.Account().PasswordHash)
	ok, err := f.hasher.Verify("new-password", ext.Session.Account().PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEmailConfirmation(t *testing.T) {
	f := newFixture(t, Settings{GuestPrefix: "guest_", EmailConfirmRequired: true})
	f.createAccount(t, "alice", "alice@example.com", "password1")
	p := newPeer(t)
	_, err := f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: "password1"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestEmailConfirmationCode(ctx, p))
	code := f.mailer.lastSecret(t)

	err = f.svc.ConfirmEmail(ctx, p, "ZZZZZZ")
	assert.Equal(t, packet.StatusInvalid, StatusOf(err))

	updates := f.store.updateCount()
	require.NoError(t, f.svc.ConfirmEmail(ctx, p, code))
	f.svc.Wait()
	assert.Equal(t, updates+1, f.store.updateCount())

	stored, err := f.store.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, stored.IsEmailConfirmed)

	info, err := f.svc.AccountInfoByPeer(ctx, p)
	require.NoError(t, err)
	assert.True(t, info.IsEmailConfirmed)

	require.NoError(t, f.svc.ConfirmEmail(ctx, p, code), "confirming twice succeeds")
	f.svc.Wait()
	assert.Equal(t, updates+1, f.store.updateCount(), "second confirm does not write")

	mails := f.mailer.count()
	require.NoError(t, f.svc.RequestEmailConfirmationCode(ctx, p))
	assert.Equal(t, mails, f.mailer.count(), "confirmed accounts get no code")

	assert.Contains(t, f.events.kinds(), events.EmailConfirmed)
}

func TestEmailConfirmation_KeepsLaterWrites(t *testing.T) {
	f := newFixture(t, Settings{GuestPrefix: "guest_", EmailConfirmRequired: true})
	f.createAccount(t, "alice", "alice@example.com", "password1")
	p := newPeer(t)
	_, err := f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: "password1"})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, f.svc.RequestEmailConfirmationCode(ctx, p))
	code := f.mailer.lastSecret(t)

	// another flow commits a new password after this session was loaded
	stored, err := f.store.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	hash, err := f.hasher.Hash("password2")
	require.NoError(t, err)
	stored.PasswordHash = hash
	require.NoError(t, f.store.UpdateAccount(ctx, stored))

	require.NoError(t, f.svc.ConfirmEmail(ctx, p, code))
	f.svc.Wait()

	stored, err = f.store.GetAccountByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, stored.IsEmailConfirmed)
	assert.Equal(t, hash, stored.PasswordHash)
}

func TestEmailConfirmation_GuestsBarred(t *testing.T) {
	f := newFixture(t, defaultSettings())
	p := newPeer(t)
	_, err := f.signIn(t, p, packet.Properties{packet.KeyGuest: "true"})
	require.NoError(t, err)

	err = f.svc.RequestEmailConfirmationCode(context.Background(), p)
	assert.Equal(t, packet.StatusUnauthorized, StatusOf(err))
	err = f.svc.ConfirmEmail(context.Background(), p, "AB12CD")
	assert.Equal(t, packet.StatusUnauthorized, StatusOf(err))
}

func TestEmailConfirmation_Unauthenticated(t *testing.T) {
	f := newFixture(t, defaultSettings())
	p := newPeer(t)

	err := f.svc.RequestEmailConfirmationCode(context.Background(), p)
	assert.Equal(t, packet.StatusUnauthorized, StatusOf(err))
	err = f.svc.ConfirmEmail(context.Background(), p, "AB12CD")
	assert.Equal(t, packet.StatusUnauthorized, StatusOf(err))
}

func TestAccountInfo(t *testing.T) {
	f := newFixture(t, defaultSettings())
	f.createAccount(t, "alice", "alice@example.com", "password1")
	ctx := context.Background()
	p := newPeer(t)

	_, err := f.svc.AccountInfoByPeer(ctx, p)
	assert.Equal(t, packet.StatusUnauthorized, StatusOf(err))

	info, err := f.svc.AccountInfoByUsername(ctx, "ALICE")
	require.NoError(t, err)
	assert.Equal(t, "alice", info.Username)

	_, err = f.signIn(t, p, packet.Properties{packet.KeyUsername: "alice", packet.KeyPassword: "password1", packet.KeyRemember: "true"})
	require.NoError(t, err)

	info, err = f.svc.AccountInfoByPeer(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, info.Token)

	info, err = f.svc.AccountInfoByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, info.Token)

	_, err = f.svc.AccountInfoByUsername(ctx, "nobody")
	assert.Equal(t, packet.StatusNotFound, StatusOf(err))
	_, err = f.svc.AccountInfoByUsername(ctx, " ")
	assert.Equal(t, packet.StatusInvalid, StatusOf(err))
}

func TestBindExtraProperties(t *testing.T) {
	f := newFixture(t, defaultSettings())
	ctx := context.Background()
	p := newPeer(t)

	_, err := f.svc.BindExtraProperties(ctx, p, packet.Properties{"steam_id": "1"})
	assert.Equal(t, packet.StatusUnauthorized, StatusOf(err))

	guest, err := f.signIn(t, p, packet.Properties{packet.KeyGuest: "true"})
	require.NoError(t, err)

	_, err = f.svc.BindExtraProperties(ctx, p, packet.Properties{"steam_id": "1", "lvl": "3"})
	require.NoError(t, err)
	info, err := f.svc.BindExtraProperties(ctx, p, packet.Properties{"lvl": "4"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"steam_id": "1", "lvl": "4"}, info.Properties)

	assert.True(t, f.sessions.IsLoggedInByExtraProperty("steam_id", "1"))

	stored, err := f.store.GetAccountByUsername(ctx, guest.Username)
	require.NoError(t, err)
	assert.Equal(t, "4", stored.Properties["lvl"])

	_, err = f.svc.BindExtraProperties(ctx, p, packet.Properties{})
	assert.Equal(t, packet.StatusInvalid, StatusOf(err))
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want packet.Status
	}{
		{nil, packet.StatusSuccess},
		{invalid("x"), packet.StatusInvalid},
		{common.ErrorUnauthorized, packet.StatusUnauthorized},
		{common.ErrNoSessionKey, packet.StatusUnauthorized},
		{common.ErrorNotFound, packet.StatusNotFound},
		{failed("lookup", common.ErrorNotFound), packet.StatusNotFound},
		{common.ErrTokenExpired, packet.StatusTokenExpired},
		{failed("insert", errors.New("db down")), packet.StatusFailed},
		{errors.New("boom"), packet.StatusError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusOf(tt.err), "%v", tt.err)
	}
}
