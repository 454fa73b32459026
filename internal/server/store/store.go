// Package store exposes the account persistence capability used by the
// authentication services, backed either by PostgreSQL (plus optional
// Redis for codes) or by process memory.
package store

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/gophmaster/internal/server/models"
)

// ErrDuplicate is returned when an insert would reuse a username or email.
var ErrDuplicate = errors.New("duplicate account")

// AccountStore is everything the services need from persistence. Lookups
// return common.ErrorNotFound when nothing matches. Returned accounts are
// owned by the caller.
type AccountStore interface {
	CreateAccountInstance() *models.Account

	GetAccountByUsername(ctx context.Context, username string) (*models.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)
	GetAccountByToken(ctx context.Context, token string) (*models.Account, error)

	InsertAccount(ctx context.Context, a *models.Account) (string, error)
	UpdateAccount(ctx context.Context, a *models.Account) error
	InsertOrUpdateToken(ctx context.Context, accountID, token string) error

	SaveEmailConfirmationCode(ctx context.Context, email, code string) error
	CheckEmailConfirmationCode(ctx context.Context, email, code string) (bool, error)
	SavePasswordResetCode(ctx context.Context, email, code string) error
	CheckPasswordResetCode(ctx context.Context, email, code string) (bool, error)
}

func newAccount() *models.Account {
	return &models.Account{Properties: map[string]string{}}
}
