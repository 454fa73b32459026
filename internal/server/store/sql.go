package store

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophmaster/internal/dbx"
	"github.com/dmitrijs2005/gophmaster/internal/server/models"
	"github.com/dmitrijs2005/gophmaster/internal/server/repositories/codes"
	"github.com/dmitrijs2005/gophmaster/internal/server/repositories/repomanager"
)

// SQLStore implements AccountStore on top of the repository manager.
// Account rows and their properties are written in one transaction.
type SQLStore struct {
	db *sql.DB
	rm repomanager.RepositoryManager
}

var _ AccountStore = (*SQLStore)(nil)

func NewSQLStore(db *sql.DB, rm repomanager.RepositoryManager) *SQLStore {
	return &SQLStore{db: db, rm: rm}
}

func (s *SQLStore) CreateAccountInstance() *models.Account {
	return newAccount()
}

func (s *SQLStore) GetAccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	return s.withProperties(ctx, func(ctx context.Context) (*models.Account, error) {
		return s.rm.Accounts(s.db).GetByUsername(ctx, username)
	})
}

func (s *SQLStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return s.withProperties(ctx, func(ctx context.Context) (*models.Account, error) {
		return s.rm.Accounts(s.db).GetByEmail(ctx, email)
	})
}

func (s *SQLStore) GetAccountByToken(ctx context.Context, token string) (*models.Account, error) {
	return s.withProperties(ctx, func(ctx context.Context) (*models.Account, error) {
		return s.rm.Accounts(s.db).GetByToken(ctx, token)
	})
}

func (s *SQLStore) InsertAccount(ctx context.Context, a *models.Account) (string, error) {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Accounts(tx)
		if _, err := repo.Insert(ctx, a); err != nil {
			return err
		}
		if len(a.Properties) == 0 {
			return nil
		}
		return repo.UpsertProperties(ctx, a.ID, a.Properties)
	})
	if err != nil {
		return "", err
	}
	return a.ID, nil
}

func (s *SQLStore) UpdateAccount(ctx context.Context, a *models.Account) error {
	return dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.rm.Accounts(tx)
		if err := repo.Update(ctx, a); err != nil {
			return err
		}
		if len(a.Properties) == 0 {
			return nil
		}
		return repo.UpsertProperties(ctx, a.ID, a.Properties)
	})
}

func (s *SQLStore) InsertOrUpdateToken(ctx context.Context, accountID, token string) error {
	return s.rm.Accounts(s.db).SetToken(ctx, accountID, token)
}

func (s *SQLStore) SaveEmailConfirmationCode(ctx context.Context, email, code string) error {
	return s.rm.Codes(s.db).Save(ctx, codes.EmailConfirmation, email, code)
}

func (s *SQLStore) CheckEmailConfirmationCode(ctx context.Context, email, code string) (bool, error) {
	return s.rm.Codes(s.db).Consume(ctx, codes.EmailConfirmation, email, code)
}

func (s *SQLStore) SavePasswordResetCode(ctx context.Context, email, code string) error {
	return s.rm.Codes(s.db).Save(ctx, codes.PasswordReset, email, code)
}

func (s *SQLStore) CheckPasswordResetCode(ctx context.Context, email, code string) (bool, error) {
	return s.rm.Codes(s.db).Consume(ctx, codes.PasswordReset, email, code)
}

func (s *SQLStore) withProperties(ctx context.Context, get func(context.Context) (*models.Account, error)) (*models.Account, error) {
	a, err := get(ctx)
	if err != nil {
		return nil, err
	}
	props, err := s.rm.Accounts(s.db).Properties(ctx, a.ID)
	if err != nil {
		return nil, err
	}
	a.Properties = props
	return a, nil
}
