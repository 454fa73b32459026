package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openAccounts(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(2)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`CREATE TABLE accounts (id INTEGER PRIMARY KEY, username TEXT UNIQUE)`)
	require.NoError(t, err)
	return db
}

func accountCount(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM accounts`).Scan(&n))
	return n
}

func TestWithTx(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name    string
		fn      func(ctx context.Context, tx DBTX) error
		wantErr error
		rows    int
	}{
		{
			name: "commit",
			fn: func(ctx context.Context, tx DBTX) error {
				_, err := tx.ExecContext(ctx, `INSERT INTO accounts(username) VALUES ('alice')`)
				return err
			},
			rows: 1,
		},
		{
			name: "fn error rolls back and is returned as is",
			fn: func(ctx context.Context, tx DBTX) error {
				if _, err := tx.ExecContext(ctx, `INSERT INTO accounts(username) VALUES ('bob')`); err != nil {
					return err
				}
				return errBoom
			},
			wantErr: errBoom,
		},
		{
			name: "second statement fails",
			fn: func(ctx context.Context, tx DBTX) error {
				if _, err := tx.ExecContext(ctx, `INSERT INTO accounts(username) VALUES ('carol')`); err != nil {
					return err
				}
				_, err := tx.ExecContext(ctx, `INSERT INTO accounts(username) VALUES ('carol')`)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openAccounts(t)

			err := WithTx(context.Background(), db, nil, tt.fn)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.rows == 0:
				assert.Error(t, err)
			default:
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.rows, accountCount(t, db))
		})
	}
}

func TestWithTx_PanicRollsBack(t *testing.T) {
	db := openAccounts(t)

	assert.PanicsWithValue(t, "kaput", func() {
		_ = WithTx(context.Background(), db, nil, func(ctx context.Context, tx DBTX) error {
			_, err := tx.ExecContext(ctx, `INSERT INTO accounts(username) VALUES ('dave')`)
			require.NoError(t, err)
			panic("kaput")
		})
	})
	assert.Equal(t, 0, accountCount(t, db))
}

func TestWithTx_BeginFails(t *testing.T) {
	db := openAccounts(t)
	require.NoError(t, db.Close())

	called := false
	err := WithTx(context.Background(), db, nil, func(context.Context, DBTX) error {
		called = true
		return nil
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "begin tx")
	assert.False(t, called)
}
