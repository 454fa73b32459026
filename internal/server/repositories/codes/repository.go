// Package codes stores the short-lived one-time codes mailed to players for
// password resets and email confirmation.
package codes

import (
	"context"
	"fmt"
	"strings"
)

type Kind int

const (
	PasswordReset Kind = iota + 1
	EmailConfirmation
)

func (k Kind) String() string {
	switch k {
	case PasswordReset:
		return "password_reset"
	case EmailConfirmation:
		return "email_confirmation"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Repository keeps at most one pending code per kind and email. Saving a new
// code replaces the previous one.
type Repository interface {
	Save(ctx context.Context, kind Kind, email, code string) error

	// Consume deletes the pending code if it matches and reports whether it
	// did. A mismatch leaves the stored code in place.
	Consume(ctx context.Context, kind Kind, email, code string) (bool, error)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
