package store

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophmaster/internal/common"
	"github.com/dmitrijs2005/gophmaster/internal/server/models"
	"github.com/dmitrijs2005/gophmaster/internal/server/repositories/codes"
	"github.com/google/uuid"
)

type pendingCode struct {
	code      string
	expiresAt time.Time
}

type codeKey struct {
	kind  codes.Kind
	email string
}

// MemoryStore keeps everything in process memory. It is meant for tests and
// single-node development servers; all data is lost on restart.
type MemoryStore struct {
	codeTTL time.Duration
	now     func() time.Time

	mu       sync.RWMutex
	accounts map[string]*models.Account
	codes    map[codeKey]pendingCode
}

var _ AccountStore = (*MemoryStore)(nil)

func NewMemoryStore(codeTTL time.Duration) *MemoryStore {
	return &MemoryStore{
		codeTTL:  codeTTL,
		now:      time.Now,
		accounts: make(map[string]*models.Account),
		codes:    make(map[codeKey]pendingCode),
	}
}

func (s *MemoryStore) CreateAccountInstance() *models.Account {
	return newAccount()
}

func (s *MemoryStore) GetAccountByUsername(_ context.Context, username string) (*models.Account, error) {
	return s.find(func(a *models.Account) bool { return strings.EqualFold(a.Username, username) })
}

func (s *MemoryStore) GetAccountByEmail(_ context.Context, email string) (*models.Account, error) {
	if email == "" {
		return nil, common.ErrorNotFound
	}
	return s.find(func(a *models.Account) bool { return strings.EqualFold(a.Email, email) })
}

func (s *MemoryStore) GetAccountByToken(_ context.Context, token string) (*models.Account, error) {
	if token == "" {
		return nil, common.ErrorNotFound
	}
	return s.find(func(a *models.Account) bool { return a.Token == token })
}

func (s *MemoryStore) InsertAccount(_ context.Context, a *models.Account) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkUnique(a); err != nil {
		return "", err
	}

	a.ID = uuid.NewString()
	a.CreatedAt = s.now().UTC()
	s.accounts[a.ID] = a.Clone()
	return a.ID, nil
}

func (s *MemoryStore) UpdateAccount(_ context.Context, a *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.accounts[a.ID]
	if !ok {
		return common.ErrorNotFound
	}
	if err := s.checkUnique(a); err != nil {
		return err
	}

	updated := a.Clone()
	props := stored.Properties
	if props == nil {
		props = map[string]string{}
	}
	for k, v := range a.Properties {
		props[k] = v
	}
	updated.Properties = props
	s.accounts[a.ID] = updated
	return nil
}

func (s *MemoryStore) InsertOrUpdateToken(_ context.Context, accountID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[accountID]
	if !ok {
		return common.ErrorNotFound
	}
	a.Token = token
	return nil
}

func (s *MemoryStore) SaveEmailConfirmationCode(_ context.Context, email, code string) error {
	s.saveCode(codes.EmailConfirmation, email, code)
	return nil
}

func (s *MemoryStore) CheckEmailConfirmationCode(_ context.Context, email, code string) (bool, error) {
	return s.consumeCode(codes.EmailConfirmation, email, code), nil
}

func (s *MemoryStore) SavePasswordResetCode(_ context.Context, email, code string) error {
	s.saveCode(codes.PasswordReset, email, code)
	return nil
}

func (s *MemoryStore) CheckPasswordResetCode(_ context.Context, email, code string) (bool, error) {
	return s.consumeCode(codes.PasswordReset, email, code), nil
}

func (s *MemoryStore) find(match func(*models.Account) bool) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if match(a) {
			return a.Clone(), nil
		}
	}
	return nil, common.ErrorNotFound
}

// checkUnique must be called with mu held.
func (s *MemoryStore) checkUnique(a *models.Account) error {
	for id, other := range s.accounts {
		if id == a.ID {
			continue
		}
		if strings.EqualFold(other.Username, a.Username) {
			return fmt.Errorf("%w: username %q", ErrDuplicate, a.Username)
		}
		if a.Email != "" && strings.EqualFold(other.Email, a.Email) {
			return fmt.Errorf("%w: email %q", ErrDuplicate, a.Email)
		}
	}
	return nil
}

func (s *MemoryStore) saveCode(kind codes.Kind, email, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[codeKey{kind, strings.ToLower(strings.TrimSpace(email))}] = pendingCode{
		code:      code,
		expiresAt: s.now().Add(s.codeTTL),
	}
}

func (s *MemoryStore) consumeCode(kind codes.Kind, email, code string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := codeKey{kind, strings.ToLower(strings.TrimSpace(email))}
	pending, ok := s.codes[key]
	if !ok {
		return false
	}
	if !s.now().Before(pending.expiresAt) {
		delete(s.codes, key)
		return false
	}
	if pending.code != code {
		return false
	}
	delete(s.codes, key)
	return true
}
