package codes

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/dbx"
)

var tables = map[Kind]string{
	PasswordReset:     "password_reset_codes",
	EmailConfirmation: "email_confirmation_codes",
}

type PostgresRepository struct {
	db  dbx.DBTX
	ttl time.Duration
	now func() time.Time
}

func NewPostgresRepository(db dbx.DBTX, ttl time.Duration) *PostgresRepository {
	return &PostgresRepository{db: db, ttl: ttl, now: time.Now}
}

func (r *PostgresRepository) Save(ctx context.Context, kind Kind, email, code string) error {
	table, err := tableFor(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (email, code, expires_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (email) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`, table)

	if _, err := r.db.ExecContext(ctx, query, normalizeEmail(email), code, r.now().Add(r.ttl)); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Consume(ctx context.Context, kind Kind, email, code string) (bool, error) {
	table, err := tableFor(kind)
	if err != nil {
		return false, err
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE email = $1 AND code = $2 AND expires_at > $3`, table)

	res, err := r.db.ExecContext(ctx, query, normalizeEmail(email), code, r.now())
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("db error: %w", err)
	}
	return n == 1, nil
}

func tableFor(kind Kind) (string, error) {
	table, ok := tables[kind]
	if !ok {
		return "", fmt.Errorf("unknown code kind %s", kind)
	}
	return table, nil
}
