package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophmaster/internal/dbx"
	"github.com/dmitrijs2005/gophmaster/internal/server/repositories/accounts"
	"github.com/dmitrijs2005/gophmaster/internal/server/repositories/codes"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Accounts(db dbx.DBTX) accounts.Repository
	Codes(db dbx.DBTX) codes.Repository
}
