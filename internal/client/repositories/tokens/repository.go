// Package tokens keeps the CLI's remembered session tokens, one per server
// address, in a local SQLite database.
package tokens

import (
	"context"
	"time"
)

// Remembered is a token saved after a remembered sign-in.
type Remembered struct {
	Server   string
	Username string
	Token    string
	SavedAt  time.Time
}

type Repository interface {
	// Get returns the token saved for server, or nil when there is none.
	Get(ctx context.Context, server string) (*Remembered, error)
	Save(ctx context.Context, r *Remembered) error
	Delete(ctx context.Context, server string) error
}
