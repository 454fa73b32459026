// Package sessions keeps the registry of authenticated peers, keyed by
// account id. A Table is created at server start, shared by every
// connection handler and cleared at shutdown.
package sessions

import (
	"strings"
	"sync/atomic"

	"github.com/dmitrijs2005/gophmaster/internal/server/models"
	"github.com/dmitrijs2005/gophmaster/internal/server/peer"
	"github.com/puzpuzpuz/xsync/v3"
)

// Session binds one connected peer to one account for the lifetime of the
// connection.
type Session struct {
	ID   string
	Peer peer.Peer

	account atomic.Pointer[models.Account]
}

func New(p peer.Peer, account *models.Account) *Session {
	s := &Session{ID: account.ID, Peer: p}
	s.account.Store(account)
	return s
}

// Account returns the current account snapshot. Callers must not mutate it;
// use SetAccount with a modified clone instead.
func (s *Session) Account() *models.Account {
	return s.account.Load()
}

func (s *Session) SetAccount(a *models.Account) {
	s.account.Store(a)
}

// Table is a concurrent map of account id to live session. Lookups other
// than by id scan the live sessions; the table only holds connected players.
type Table struct {
	m *xsync.MapOf[string, *Session]
}

func NewTable() *Table {
	return &Table{m: xsync.NewMapOf[string, *Session]()}
}

// TryAdd registers s unless a session with the same id exists.
func (t *Table) TryAdd(s *Session) bool {
	_, loaded := t.m.LoadOrStore(s.ID, s)
	return !loaded
}

// TryRemove unregisters the session with the given id, if any.
func (t *Table) TryRemove(id string) (*Session, bool) {
	return t.m.LoadAndDelete(id)
}

// RemoveOwned unregisters id only while it is still held by peerID, so a
// stale disconnect cannot evict a newer session of the same account.
func (t *Table) RemoveOwned(id, peerID string) (*Session, bool) {
	var removed *Session
	t.m.Compute(id, func(old *Session, loaded bool) (*Session, bool) {
		if !loaded {
			return nil, true
		}
		if old.Peer.ID() != peerID {
			return old, false
		}
		removed = old
		return nil, true
	})
	return removed, removed != nil
}

func (t *Table) GetByID(id string) (*Session, bool) {
	return t.m.Load(id)
}

// GetManyByIDs returns the sessions found for ids, skipping unknown ones.
func (t *Table) GetManyByIDs(ids ...string) []*Session {
	out := make([]*Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := t.m.Load(id); ok {
			out = append(out, s)
		}
	}
	return out
}

func (t *Table) find(match func(*Session) bool) (*Session, bool) {
	var found *Session
	t.m.Range(func(_ string, s *Session) bool {
		if match(s) {
			found = s
			return false
		}
		return true
	})
	return found, found != nil
}

// GetByUsername matches usernames case-insensitively.
func (t *Table) GetByUsername(username string) (*Session, bool) {
	return t.find(func(s *Session) bool {
		return strings.EqualFold(s.Account().Username, username)
	})
}

func (t *Table) GetByEmail(email string) (*Session, bool) {
	if email == "" {
		return nil, false
	}
	return t.find(func(s *Session) bool {
		return strings.EqualFold(s.Account().Email, email)
	})
}

func (t *Table) GetByPeerID(peerID string) (*Session, bool) {
	return t.find(func(s *Session) bool {
		return s.Peer.ID() == peerID
	})
}

func (t *Table) IsLoggedInByID(id string) bool {
	_, ok := t.m.Load(id)
	return ok
}

func (t *Table) IsLoggedInByUsername(username string) bool {
	_, ok := t.GetByUsername(username)
	return ok
}

func (t *Table) IsLoggedInByExtraProperty(key, value string) bool {
	_, ok := t.find(func(s *Session) bool {
		v, ok := s.Account().Properties[key]
		return ok && v == value
	})
	return ok
}

func (t *Table) Count() int {
	return t.m.Size()
}

// Clear drops every session without notifying anyone.
func (t *Table) Clear() {
	t.m.Clear()
}
