package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/client/client"
	"github.com/dmitrijs2005/gophmaster/internal/client/config"
	"github.com/dmitrijs2005/gophmaster/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	info *packet.AccountInfo
	err  error

	calls    []string
	username string
	password string
	remember bool
	token    string
	email    string
	code     string
	props    map[string]string
}

func (f *fakeBackend) result(name string) (*packet.AccountInfo, error) {
	f.calls = append(f.calls, name)
	if f.err != nil {
		return nil, f.err
	}
	return f.info, nil
}

func (f *fakeBackend) done(name string) error {
	_, err := f.result(name)
	return err
}

func (f *fakeBackend) SignInAsGuest(context.Context) (*packet.AccountInfo, error) {
	return f.result("guest")
}
func (f *fakeBackend) SignInWithPassword(_ context.Context, u, p string, r bool) (*packet.AccountInfo, error) {
	f.username, f.password, f.remember = u, p, r
	return f.result("password")
}
func (f *fakeBackend) SignInWithToken(_ context.Context, token string) (*packet.AccountInfo, error) {
	f.token = token
	return f.result("token")
}
func (f *fakeBackend) SignInWithEmail(_ context.Context, email string) error {
	f.email = email
	return f.done("email")
}
func (f *fakeBackend) SignUp(_ context.Context, u, e, p string) (*packet.AccountInfo, error) {
	f.username, f.email, f.password = u, e, p
	return f.result("signup")
}
func (f *fakeBackend) SignOut(context.Context) error { return f.done("signout") }
func (f *fakeBackend) RequestPasswordResetCode(_ context.Context, email string) error {
	f.email = email
	return f.done("resetcode")
}
func (f *fakeBackend) ChangePassword(_ context.Context, email, code, password string) error {
	f.email, f.code, f.password = email, code, password
	return f.done("changepassword")
}
func (f *fakeBackend) RequestEmailConfirmationCode(context.Context) error {
	return f.done("confirmcode")
}
func (f *fakeBackend) ConfirmEmail(_ context.Context, code string) error {
	f.code = code
	return f.done("confirm")
}
func (f *fakeBackend) BindExtraProperties(_ context.Context, props map[string]string) (*packet.AccountInfo, error) {
	f.props = props
	return f.result("props")
}
func (f *fakeBackend) AccountInfo(context.Context) (*packet.AccountInfo, error) {
	return f.result("whoami")
}
func (f *fakeBackend) AccountInfoByUsername(_ context.Context, username string) (*packet.AccountInfo, error) {
	f.username = username
	return f.result("whois")
}
func (f *fakeBackend) Close() error { return nil }

func stubPassword(t *testing.T, password string) {
	t.Helper()
	orig := getPassword
	getPassword = func(io.Writer) ([]byte, error) { return []byte(password), nil }
	t.Cleanup(func() { getPassword = orig })
}

func testApp(api Backend, input string) (*App, *bytes.Buffer) {
	var out bytes.Buffer
	cfg := &config.Config{RequestTimeout: time.Second}
	return newApp(cfg, api, strings.NewReader(input), &out), &out
}

func TestApp_GuestAndLogout(t *testing.T) {
	api := &fakeBackend{info: &packet.AccountInfo{Username: "guest_ab12cd34", IsGuest: true, Token: "tok"}}
	a, out := testApp(api, "")

	require.NoError(t, a.Guest(context.Background()))
	assert.True(t, a.isLoggedIn())
	assert.Equal(t, "tok", a.token)
	assert.Equal(t, "(guest_ab12cd34 guest) ", a.getStatus())
	assert.Contains(t, out.String(), "Signed in as guest_ab12cd34")

	require.NoError(t, a.Logout(context.Background()))
	assert.False(t, a.isLoggedIn())
	assert.Equal(t, "", a.getStatus())
	assert.Equal(t, "tok", a.token, "token survives logout")
}

func TestApp_LoginRemember(t *testing.T) {
	stubPassword(t, "password1")
	api := &fakeBackend{info: &packet.AccountInfo{Username: "alice", Token: "t1"}}
	a, _ := testApp(api, "alice\ny\n")

	require.NoError(t, a.Login(context.Background()))
	assert.Equal(t, "alice", api.username)
	assert.Equal(t, "password1", api.password)
	assert.True(t, api.remember)

	// the saved token is reused without a prompt
	require.NoError(t, a.TokenLogin(context.Background()))
	assert.Equal(t, "t1", api.token)
}

func TestApp_TokenLoginPrompts(t *testing.T) {
	api := &fakeBackend{info: &packet.AccountInfo{Username: "alice"}}
	a, _ := testApp(api, "pasted-token\n")

	require.NoError(t, a.TokenLogin(context.Background()))
	assert.Equal(t, "pasted-token", api.token)
}

func TestApp_ReportsStatus(t *testing.T) {
	stubPassword(t, "x")
	api := &fakeBackend{err: &client.StatusError{Op: packet.OpSignIn, Status: packet.StatusTokenExpired}}
	a, out := testApp(api, "tok\n")

	err := a.TokenLogin(context.Background())
	assert.Error(t, err)
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "Token login unsuccessful: the saved token is no longer valid")

	api.err = client.ErrUnavailable
	out.Reset()
	assert.Error(t, a.Guest(context.Background()))
	assert.Contains(t, out.String(), "server unavailable")

	api.err = errors.New("boom")
	out.Reset()
	assert.Error(t, a.WhoAmI(context.Background()))
	assert.Contains(t, out.String(), "boom")
}

func TestApp_RegisterUpgradesGuest(t *testing.T) {
	stubPassword(t, "password1")
	api := &fakeBackend{info: &packet.AccountInfo{Username: "alice", Email: "a@example.com"}}
	a, out := testApp(api, "alice\na@example.com\n")
	a.account = &packet.AccountInfo{Username: "guest_1", IsGuest: true}

	require.NoError(t, a.Register(context.Background()))
	assert.Equal(t, "a@example.com", api.email)
	assert.Equal(t, "alice", a.account.Username)
	assert.Contains(t, out.String(), "upgraded")
}

func TestApp_EmailLogin(t *testing.T) {
	api := &fakeBackend{}
	a, out := testApp(api, "dave@example.com\n")

	require.NoError(t, a.EmailLogin(context.Background()))
	assert.Equal(t, "dave@example.com", api.email)
	assert.False(t, a.isLoggedIn())
	assert.Contains(t, out.String(), "sent to dave@example.com")
}

func TestApp_ResetPassword(t *testing.T) {
	stubPassword(t, "password2")
	api := &fakeBackend{}
	a, _ := testApp(api, "bob@example.com\nAB12CD\n")

	require.NoError(t, a.ResetPassword(context.Background()))
	assert.Equal(t, []string{"resetcode", "changepassword"}, api.calls)
	assert.Equal(t, "AB12CD", api.code)
	assert.Equal(t, "password2", api.password)
}

func TestApp_ConfirmEmail(t *testing.T) {
	api := &fakeBackend{}
	a, _ := testApp(api, "ZX98YW\n")
	a.account = &packet.AccountInfo{Username: "carol", Email: "c@example.com"}

	require.NoError(t, a.ConfirmEmail(context.Background()))
	assert.Equal(t, "ZX98YW", api.code)
	assert.True(t, a.account.IsEmailConfirmed)

	api.calls = nil
	require.NoError(t, a.ConfirmEmail(context.Background()))
	assert.Equal(t, []string{"confirmcode"}, api.calls, "confirmed accounts are not asked for a code")
}

func TestApp_SetPropertiesAndWhoIs(t *testing.T) {
	api := &fakeBackend{info: &packet.AccountInfo{Username: "carol", ID: "1", Properties: map[string]string{"level": "7", "skin": "red"}}}
	a, out := testApp(api, "level=7\nskin=red\n\n")

	require.NoError(t, a.SetProperties(context.Background()))
	assert.Equal(t, map[string]string{"level": "7", "skin": "red"}, api.props)
	assert.Contains(t, out.String(), "level=7\n  skin=red")

	require.NoError(t, a.WhoIs(context.Background(), []string{"carol"}))
	assert.Equal(t, "carol", api.username)
}

func TestApp_SetPropertiesMalformed(t *testing.T) {
	api := &fakeBackend{}
	a, _ := testApp(api, "oops\n\n")

	assert.Error(t, a.SetProperties(context.Background()))
	assert.Empty(t, api.calls)
}

func withSavedTokens(t *testing.T, a *App) *client.Repositories {
	t.Helper()
	repos, err := client.InitDatabase(context.Background(), filepath.Join(t.TempDir(), databaseFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	a.config.ServerEndpointAddr = "game.example:9090"
	a.saved = repos.Tokens
	return repos
}

func TestApp_TokenSavedAcrossRuns(t *testing.T) {
	stubPassword(t, "password1")
	api := &fakeBackend{info: &packet.AccountInfo{Username: "alice", Token: "t1"}}
	first, _ := testApp(api, "alice\ny\n")
	repos := withSavedTokens(t, first)

	require.NoError(t, first.Login(context.Background()))

	r, err := repos.Tokens.Get(context.Background(), "game.example:9090")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, "alice", r.Username)
	assert.Equal(t, "t1", r.Token)

	// a fresh run against the same database resumes without a prompt
	second, out := testApp(api, "")
	second.config.ServerEndpointAddr = "game.example:9090"
	second.saved = repos.Tokens

	require.NoError(t, second.TokenLogin(context.Background()))
	assert.Equal(t, "t1", api.token)
	assert.Contains(t, out.String(), "Using saved token for alice")
}

func TestApp_ExpiredSavedTokenForgotten(t *testing.T) {
	api := &fakeBackend{err: &client.StatusError{Op: packet.OpSignIn, Status: packet.StatusTokenExpired}}
	a, _ := testApp(api, "")
	repos := withSavedTokens(t, a)

	require.NoError(t, repos.Tokens.Save(context.Background(), &tokens.Remembered{
		Server: "game.example:9090", Username: "alice", Token: "stale",
	}))

	assert.Error(t, a.TokenLogin(context.Background()))
	assert.Equal(t, "stale", api.token)

	r, err := repos.Tokens.Get(context.Background(), "game.example:9090")
	require.NoError(t, err)
	assert.Nil(t, r)
}
