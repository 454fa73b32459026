package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/gophmaster/internal/client/migrations"
	"github.com/dmitrijs2005/gophmaster/internal/client/repositories/tokens"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Repositories is the CLI's local state.
type Repositories struct {
	Tokens tokens.Repository
	db     *sql.DB
}

func (r *Repositories) Close() error {
	return r.db.Close()
}

func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens the SQLite database at dsn and brings its schema up
// to date.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Repositories{Tokens: tokens.NewSQLiteRepository(db), db: db}, nil
}
