// Package accounts persists player accounts and their extra properties.
package accounts

import (
	"context"

	"github.com/dmitrijs2005/gophmaster/internal/server/models"
)

type Repository interface {
	// Insert stores a new account and fills in its id and creation time.
	Insert(ctx context.Context, a *models.Account) (string, error)
	Update(ctx context.Context, a *models.Account) error
	GetByUsername(ctx context.Context, username string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByToken(ctx context.Context, token string) (*models.Account, error)
	SetToken(ctx context.Context, id, token string) error
	Properties(ctx context.Context, id string) (map[string]string, error)
	UpsertProperties(ctx context.Context, id string, props map[string]string) error
}
