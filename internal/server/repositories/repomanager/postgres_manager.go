// Package repomanager provides a concrete RepositoryManager for PostgreSQL,
// wiring together repository constructors and database migrations (via goose).
// One-time codes go to Redis when a client is configured.
package repomanager

import (
	"context"
	"database/sql"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/dbx"
	"github.com/dmitrijs2005/gophmaster/internal/server/migrations"
	"github.com/dmitrijs2005/gophmaster/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophmaster/internal/server/repositories/codes"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/redis/go-redis/v9"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct {
	codeTTL time.Duration
	rdb     *redis.Client
}

// Accounts returns an accounts.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Accounts(db dbx.DBTX) accounts.Repository {
	return accounts.NewPostgresRepository(db)
}

// Codes returns the Redis code store when configured, otherwise a
// codes.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Codes(db dbx.DBTX) codes.Repository {
	if m.rdb != nil {
		return codes.NewRedisRepository(m.rdb, m.codeTTL)
	}
	return codes.NewPostgresRepository(db, m.codeTTL)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
// rdb may be nil.
func NewPostgresRepositoryManager(codeTTL time.Duration, rdb *redis.Client) RepositoryManager {
	return &PostgresRepositoryManager{codeTTL: codeTTL, rdb: rdb}
}
