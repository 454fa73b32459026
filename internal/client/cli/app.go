package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dmitrijs2005/gophmaster/internal/client/client"
	"github.com/dmitrijs2005/gophmaster/internal/client/config"
	"github.com/dmitrijs2005/gophmaster/internal/client/repositories/tokens"
	"github.com/dmitrijs2005/gophmaster/internal/filex"
	"github.com/dmitrijs2005/gophmaster/internal/packet"
)

const databaseFile = "client.db"

// Backend is the part of client.GRPCClient the CLI drives.
type Backend interface {
	SignInAsGuest(ctx context.Context) (*packet.AccountInfo, error)
	SignInWithPassword(ctx context.Context, username, password string, remember bool) (*packet.AccountInfo, error)
	SignInWithToken(ctx context.Context, token string) (*packet.AccountInfo, error)
	SignInWithEmail(ctx context.Context, email string) error
	SignUp(ctx context.Context, username, email, password string) (*packet.AccountInfo, error)
	SignOut(ctx context.Context) error
	RequestPasswordResetCode(ctx context.Context, email string) error
	ChangePassword(ctx context.Context, email, code, password string) error
	RequestEmailConfirmationCode(ctx context.Context) error
	ConfirmEmail(ctx context.Context, code string) error
	BindExtraProperties(ctx context.Context, props map[string]string) (*packet.AccountInfo, error)
	AccountInfo(ctx context.Context) (*packet.AccountInfo, error)
	AccountInfoByUsername(ctx context.Context, username string) (*packet.AccountInfo, error)
	Close() error
}

var _ Backend = (*client.GRPCClient)(nil)

type App struct {
	config  *config.Config
	api     Backend
	account *packet.AccountInfo
	token   string
	reader  *bufio.Reader
	out     io.Writer

	// saved is nil when the CLI runs without a local database.
	saved   tokens.Repository
	closers []io.Closer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	dir, err := filex.EnsureDir(c.DataDir)
	if err != nil {
		return nil, err
	}
	repos, err := client.InitDatabase(ctx, filepath.Join(dir, databaseFile))
	if err != nil {
		return nil, fmt.Errorf("local database: %w", err)
	}

	api, err := client.Dial(ctx, c.ServerEndpointAddr)
	if err != nil {
		_ = repos.Close()
		return nil, err
	}
	api.DeviceID = c.DeviceID
	api.DeviceName = c.DeviceName

	hctx, cancel := context.WithTimeout(ctx, c.RequestTimeout)
	defer cancel()
	if err := api.Handshake(hctx); err != nil {
		_ = api.Close()
		_ = repos.Close()
		return nil, fmt.Errorf("handshake: %w", err)
	}

	a := newApp(c, api, os.Stdin, os.Stdout)
	a.saved = repos.Tokens
	a.closers = append(a.closers, repos)
	return a, nil
}

func newApp(c *config.Config, api Backend, in io.Reader, out io.Writer) *App {
	return &App{config: c, api: api, reader: bufio.NewReader(in), out: out}
}

func (a *App) Run(ctx context.Context) {
	defer a.close()
	a.Root(ctx)
}

func (a *App) close() {
	_ = a.api.Close()
	for _, c := range a.closers {
		_ = c.Close()
	}
}

func (a *App) isLoggedIn() bool {
	return a.account != nil
}

func (a *App) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.RequestTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.config.RequestTimeout)
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

// report prints err in user terms and returns it unchanged.
func (a *App) report(what string, err error) error {
	if err == nil {
		return nil
	}

	if st, ok := client.StatusOf(err); ok {
		a.println(fmt.Sprintf("%s unsuccessful: %s", what, describe(st)))
		return err
	}
	if errors.Is(err, client.ErrUnavailable) || errors.Is(err, client.ErrClosed) {
		a.println(what + " unsuccessful: server unavailable")
		return err
	}
	a.println(fmt.Sprintf("%s unsuccessful: %v", what, err))
	return err
}

func describe(st packet.Status) string {
	switch st {
	case packet.StatusInvalid:
		return "the server rejected the input"
	case packet.StatusUnauthorized:
		return "not allowed in the current state"
	case packet.StatusNotFound:
		return "no such account"
	case packet.StatusTokenExpired:
		return "the saved token is no longer valid"
	case packet.StatusFailed:
		return "the account is busy or the server could not finish the request"
	default:
		return "server error"
	}
}

func (a *App) signedIn(ctx context.Context, info *packet.AccountInfo) {
	a.account = info
	if info.Token != "" {
		a.token = info.Token
		a.remember(ctx, info)
	}
	a.println("Signed in as " + info.Username)
}

// remember stores the issued token for later runs. Failing to save is
// reported but does not undo the sign-in.
func (a *App) remember(ctx context.Context, info *packet.AccountInfo) {
	if a.saved == nil {
		return
	}
	err := a.saved.Save(ctx, &tokens.Remembered{
		Server:   a.config.ServerEndpointAddr,
		Username: info.Username,
		Token:    info.Token,
	})
	if err != nil {
		a.println(fmt.Sprintf("Could not save token: %v", err))
	}
}

// savedToken returns the token remembered for the current server, if any.
func (a *App) savedToken(ctx context.Context) *tokens.Remembered {
	if a.saved == nil {
		return nil
	}
	r, err := a.saved.Get(ctx, a.config.ServerEndpointAddr)
	if err != nil {
		a.println(fmt.Sprintf("Could not read saved token: %v", err))
		return nil
	}
	return r
}

func (a *App) forget(ctx context.Context) {
	a.token = ""
	if a.saved == nil {
		return
	}
	if err := a.saved.Delete(ctx, a.config.ServerEndpointAddr); err != nil {
		a.println(fmt.Sprintf("Could not delete saved token: %v", err))
	}
}
