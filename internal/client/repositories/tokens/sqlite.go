package tokens

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/dbx"
)

type SQLiteRepository struct {
	db  dbx.DBTX
	now func() time.Time
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db, now: time.Now}
}

func (r *SQLiteRepository) Get(ctx context.Context, server string) (*Remembered, error) {
	rem := &Remembered{Server: server}
	var savedAt int64
	err := r.db.QueryRowContext(ctx,
		`SELECT username, token, saved_at FROM remembered_tokens WHERE server = ?`, server,
	).Scan(&rem.Username, &rem.Token, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token[%s]: %w", server, err)
	}
	rem.SavedAt = time.Unix(savedAt, 0).UTC()
	return rem, nil
}

// Save stores rem, replacing any token saved for the same server. A zero
// SavedAt is set to the current time.
func (r *SQLiteRepository) Save(ctx context.Context, rem *Remembered) error {
	if rem.SavedAt.IsZero() {
		rem.SavedAt = r.now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO remembered_tokens (server, username, token, saved_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(server) DO UPDATE SET
			username = excluded.username,
			token = excluded.token,
			saved_at = excluded.saved_at
	`, rem.Server, rem.Username, rem.Token, rem.SavedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to save token[%s]: %w", rem.Server, err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, server string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM remembered_tokens WHERE server = ?`, server)
	if err != nil {
		return fmt.Errorf("failed to delete token[%s]: %w", server, err)
	}
	return nil
}
