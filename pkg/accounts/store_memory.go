package accounts

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store. It backs tests and single-node
// development setups.
type MemoryStore struct {
	mu       sync.RWMutex
	nextID   int64
	accounts map[string]*Account
	events   map[string][]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID:   1,
		accounts: make(map[string]*Account),
		events:   make(map[string][]string),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Create(ctx context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.accounts[account.Username]; ok {
		return ErrDuplicateAccount
	}
	account.ID = s.nextID
	s.nextID++
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}
	stored := *account
	s.accounts[account.Username] = &stored
	return nil
}

func (s *MemoryStore) FindByUsername(ctx context.Context, username string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[username]
	if !ok || account.Deleted {
		return nil, ErrAccountNotFound
	}
	copied := *account
	return &copied, nil
}

func (s *MemoryStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.accounts[username]
	return ok, nil
}

func (s *MemoryStore) SearchByField(ctx context.Context, field, value string) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Account
	for _, account := range s.accounts {
		if account.Deleted {
			continue
		}
		if fieldValue(account, field) == value && value != "" {
			copied := *account
			matches = append(matches, &copied)
		}
	}
	return matches, nil
}

func fieldValue(account *Account, field string) string {
	switch field {
	case "username":
		return account.Username
	case "email":
		return account.Email
	case "idnumber":
		return account.IDNumber
	case "firstname":
		return account.FirstName
	case "lastname":
		return account.LastName
	default:
		return account.Custom[field]
	}
}

func (s *MemoryStore) ListByAuthMethodCreatedSince(ctx context.Context, authMethod string, since time.Time) ([]*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*Account
	for _, account := range s.accounts {
		if account.Deleted || account.AuthMethod != authMethod {
			continue
		}
		if account.CreatedAt.After(since) {
			copied := *account
			matches = append(matches, &copied)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches, nil
}

func (s *MemoryStore) Suspend(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok || account.Deleted {
		return ErrAccountNotFound
	}
	account.Suspended = true
	return nil
}

func (s *MemoryStore) ScrubAndDelete(ctx context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok || account.Deleted {
		return ErrAccountNotFound
	}
	account.FirstName = ""
	account.LastName = ""
	account.Email = ""
	account.IDNumber = ""
	account.Custom = nil
	account.Suspended = true
	account.Deleted = true
	delete(s.events, username)
	return nil
}

func (s *MemoryStore) Touch(ctx context.Context, username string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[username]
	if !ok || account.Deleted {
		return ErrAccountNotFound
	}
	account.LastLoginAt = &at
	return nil
}

func (s *MemoryStore) LogEvent(ctx context.Context, username, kind string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[username] = append(s.events[username], kind)
	return nil
}

// Events returns the recorded event kinds for a username. Test helper.
func (s *MemoryStore) Events(username string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.events[username]...)
}
