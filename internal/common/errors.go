// Package common defines shared constants, sentinel errors and small random
// helpers used across client and server layers of gophmaster. Callers should
// use errors.Is to match the error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// ErrValidation marks malformed or out-of-range input.
	ErrValidation = errors.New("validation error")

	// ErrFailed marks a request that was well-formed but could not be
	// carried out: a dependency failed or the identity is already in use.
	ErrFailed = errors.New("failed")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// ErrNoSessionKey is returned when a peer sends an encrypted payload
	// before completing the key handshake.
	ErrNoSessionKey = errors.New("no session key")
)
