package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/dbx"
	"github.com/dmitrijs2005/gophmaster/internal/server/models"
)

const selectAccount = `SELECT id, username, COALESCE(email, ''), password_hash, is_guest,
       is_email_confirmed, device_id, device_name, COALESCE(token, ''), created_at
  FROM accounts`

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, a *models.Account) (string, error) {
	query :=
		`INSERT INTO accounts (username, email, password_hash, is_guest, is_email_confirmed, device_id, device_name, token)
		 VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, NULLIF($8, ''))
		 RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		a.Username, a.Email, a.PasswordHash, a.IsGuest, a.IsEmailConfirmed,
		a.DeviceID, a.DeviceName, a.Token).Scan(&a.ID, &a.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("db error: %w", err)
	}

	return a.ID, nil
}

func (r *PostgresRepository) Update(ctx context.Context, a *models.Account) error {
	query :=
		`UPDATE accounts
		    SET username = $2, email = NULLIF($3, ''), password_hash = $4, is_guest = $5,
		        is_email_confirmed = $6, device_id = $7, device_name = $8, token = NULLIF($9, '')
		  WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query,
		a.ID, a.Username, a.Email, a.PasswordHash, a.IsGuest,
		a.IsEmailConfirmed, a.DeviceID, a.DeviceName, a.Token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}

	return expectOneRow(res)
}

func (r *PostgresRepository) GetByUsername(ctx context.Context, username string) (*models.Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE lower(username) = lower($1)`, username)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE lower(email) = lower($1)`, email)
}

func (r *PostgresRepository) GetByToken(ctx context.Context, token string) (*models.Account, error) {
	return r.getOne(ctx, selectAccount+` WHERE token = $1`, token)
}

func (r *PostgresRepository) SetToken(ctx context.Context, id, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE accounts SET token = NULLIF($2, '') WHERE id = $1`, id, token)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOneRow(res)
}

func (r *PostgresRepository) Properties(ctx context.Context, id string) (map[string]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT key, value FROM account_properties WHERE account_id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	props := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		props[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}

	return props, nil
}

// UpsertProperties writes props in key order, one statement per key. Run it
// inside a transaction to make the batch atomic.
func (r *PostgresRepository) UpsertProperties(ctx context.Context, id string, props map[string]string) error {
	query :=
		`INSERT INTO account_properties (account_id, key, value)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (account_id, key) DO UPDATE SET value = EXCLUDED.value`

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if _, err := r.db.ExecContext(ctx, query, id, k, props[k]); err != nil {
			return fmt.Errorf("db error: %w", err)
		}
	}

	return nil
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (*models.Account, error) {
	a := &models.Account{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.IsGuest,
		&a.IsEmailConfirmed, &a.DeviceID, &a.DeviceName, &a.Token, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrorNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return a, nil
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	if n == 0 {
		return common.ErrorNotFound
	}
	return nil
}
