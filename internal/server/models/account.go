// Package models holds the server-side domain records.
package models

import (
	"maps"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/packet"
)

// Account is the persistent identity record of a player.
type Account struct {
	ID               string
	Username         string
	Email            string
	PasswordHash     string
	IsGuest          bool
	IsEmailConfirmed bool
	DeviceID         string
	DeviceName       string
	Token            string
	Properties       map[string]string
	CreatedAt        time.Time
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Properties = maps.Clone(a.Properties)
	return &c
}

// SetProperties upserts every pair of props into the account.
func (a *Account) SetProperties(props map[string]string) {
	if a.Properties == nil {
		a.Properties = make(map[string]string, len(props))
	}
	maps.Copy(a.Properties, props)
}

// Info converts the account into its wire form. The token is included only
// when withToken is set.
func (a *Account) Info(withToken bool) *packet.AccountInfo {
	info := &packet.AccountInfo{
		ID:               a.ID,
		Username:         a.Username,
		Email:            a.Email,
		IsGuest:          a.IsGuest,
		IsEmailConfirmed: a.IsEmailConfirmed,
		Properties:       maps.Clone(a.Properties),
	}
	if withToken {
		info.Token = a.Token
	}
	return info
}
