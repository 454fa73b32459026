// Package server assembles and runs the gophmaster authentication server.
// It selects the account store, wires mail, validation, tokens and the
// session table into the auth service, and serves peers over gRPC until
// the process is told to stop.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/gophmaster/internal/cryptox"
	"github.com/dmitrijs2005/gophmaster/internal/logging"
	"github.com/dmitrijs2005/gophmaster/internal/server/censor"
	"github.com/dmitrijs2005/gophmaster/internal/server/config"
	"github.com/dmitrijs2005/gophmaster/internal/server/events"
	"github.com/dmitrijs2005/gophmaster/internal/server/mail"
	"github.com/dmitrijs2005/gophmaster/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/gophmaster/internal/server/services"
	"github.com/dmitrijs2005/gophmaster/internal/server/sessions"
	"github.com/dmitrijs2005/gophmaster/internal/server/store"
	"github.com/dmitrijs2005/gophmaster/internal/server/tokens"
	"github.com/dmitrijs2005/gophmaster/internal/server/validation"
	"github.com/redis/go-redis/v9"

	gs "github.com/dmitrijs2005/gophmaster/internal/server/grpc"
)

type App struct {
	config   *config.Config
	logger   logging.Logger
	auth     *services.AuthService
	sessions *sessions.Table
	closers  []func() error
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	logger := logging.NewJSONLogger(os.Stdout, c.LogLevel)
	app := &App{config: c, logger: logger, sessions: sessions.NewTable()}

	st, err := app.openStore(ctx)
	if err != nil {
		app.close()
		return nil, err
	}

	v, err := app.newValidator()
	if err != nil {
		app.close()
		return nil, err
	}

	mailer, err := app.newMailer()
	if err != nil {
		app.close()
		return nil, err
	}

	codec, err := tokens.NewCodec(tokens.Options{
		Secret:   []byte(c.SecretKey),
		Issuer:   c.TokenIssuer,
		Audience: c.TokenAudience,
		Lifetime: c.TokenLifetime,
	}, st)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("token codec: %w", err)
	}

	bus := events.NewBus(logger)
	bus.Subscribe(events.ListenerFunc(func(ctx context.Context, e events.Event) {
		logger.Debug(ctx, "account event", "kind", e.Kind, "account", e.Account.ID, "peer", e.PeerID)
	}))

	app.auth = services.NewAuthService(services.Deps{
		Store:     st,
		Tokens:    codec,
		Validator: v,
		Sessions:  app.sessions,
		Events:    bus,
		Mailer:    mailer,
		Hasher:    cryptox.DefaultPasswordHasher(),
		Log:       logger,
	}, services.Settings{
		GuestLoginEnabled:    c.GuestLoginEnabled,
		GuestPrefix:          c.GuestPrefix,
		EmailConfirmRequired: c.EmailConfirmRequired,
	})

	return app, nil
}

// openStore picks the in-memory store for MemoryDSN and PostgreSQL
// otherwise. Redis, when configured, holds the one-time codes of the
// PostgreSQL store.
func (app *App) openStore(ctx context.Context) (store.AccountStore, error) {
	if app.config.DatabaseDSN == config.MemoryDSN {
		app.logger.Warn(ctx, "using in-memory account store, data is lost on exit")
		return store.NewMemoryStore(app.config.CodeTTL), nil
	}

	var rdb *redis.Client
	if app.config.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: app.config.RedisAddr})
		app.closers = append(app.closers, rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis init error: %w", err)
		}
	}

	db, err := sql.Open("pgx", app.config.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	app.closers = append(app.closers, db.Close)

	rm := repomanager.NewPostgresRepositoryManager(app.config.CodeTTL, rdb)
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	return store.NewSQLStore(db, rm), nil
}

func (app *App) newValidator() (*validation.Validator, error) {
	if app.config.CensorFile == "" {
		return validation.New(app.config.ValidationRules(), nil)
	}

	words, err := censor.LoadWordList(app.config.CensorFile)
	if err != nil {
		return nil, fmt.Errorf("censor list: %w", err)
	}
	app.logger.Info(context.Background(), "censor list loaded", "words", words.Len())
	return validation.New(app.config.ValidationRules(), words)
}

func (app *App) newMailer() (mail.Mailer, error) {
	if app.config.ResendAPIKey == "" {
		app.logger.Warn(context.Background(), "no mail API key, outgoing mail is only logged")
		return mail.NewLogMailer(app.logger), nil
	}
	return mail.NewResendMailer(app.config.ResendAPIKey, app.config.MailFrom, app.logger)
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startGRPCServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := gs.NewGRPCServer(app.config.EndpointAddrGRPC, app.logger, app.auth)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// Run serves peers until ctx is cancelled or a stop signal arrives, then
// drains background writes and releases the store.
func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startGRPCServer(ctx, cancelFunc)
	}()

	wg.Wait()

	app.auth.Wait()
	app.sessions.Clear()
	app.close()

	app.logger.Info(context.Background(), "App stopped")
}

func (app *App) close() {
	for i := len(app.closers) - 1; i >= 0; i-- {
		if err := app.closers[i](); err != nil {
			app.logger.Warn(context.Background(), "close resource", "error", err)
		}
	}
	app.closers = nil
}
