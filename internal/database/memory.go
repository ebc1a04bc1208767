package database

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps accounts in process. Every method holds one lock for its
// whole duration, which gives it the single-document atomicity the other
// stores get from the database. Used by tests and "memory://" deployments.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	now      func() time.Time
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		now:      time.Now,
	}
}

func clone(a *Account) *Account {
	cp := *a
	if a.Reset != nil {
		r := *a.Reset
		cp.Reset = &r
	}
	cp.GeneratedPassword = ""
	return &cp
}

func (s *MemoryStore) FindByHandle(_ context.Context, handle string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := strings.ToLower(handle)
	var byPhone *Account
	for _, a := range s.accounts {
		if a.Email == email {
			return clone(a), nil
		}
		if byPhone == nil && a.Phone != "" && a.Phone == handle {
			byPhone = a
		}
	}
	if byPhone == nil {
		return nil, ErrNotFound
	}
	return clone(byPhone), nil
}

func (s *MemoryStore) FindByID(_ context.Context, id string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(a), nil
}

func (s *MemoryStore) List(_ context.Context) ([]Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, clone(a).Redacted())
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (s *MemoryStore) Create(_ context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.accounts {
		if a.Email == account.Email {
			return ErrDuplicateEmail
		}
	}

	now := s.now()
	if account.CreatedAt.IsZero() {
		account.CreatedAt = now
	}
	account.UpdatedAt = now
	s.accounts[account.ID] = clone(account)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch AccountPatch) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !patch.IsEmpty() {
		patch.Apply(a)
		a.UpdatedAt = s.now()
	}
	return clone(a), nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.accounts, id)
	return nil
}

func (s *MemoryStore) SetResetState(_ context.Context, id string, state ResetState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	a.Reset = &state
	a.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) FindByResetToken(_ context.Context, digest string, now time.Time) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.byResetToken(digest, now)
	if a == nil {
		return nil, ErrTokenNotRedeemable
	}
	return clone(a), nil
}

func (s *MemoryStore) RedeemReset(_ context.Context, digest string, now time.Time, passwordHash string) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.byResetToken(digest, now)
	if a == nil {
		return nil, ErrTokenNotRedeemable
	}
	a.PasswordHash = passwordHash
	a.Reset = nil
	a.UpdatedAt = s.now()
	return clone(a), nil
}

func (s *MemoryStore) byResetToken(digest string, now time.Time) *Account {
	if digest == "" {
		return nil
	}
	for _, a := range s.accounts {
		if a.Reset != nil && a.Reset.Token == digest && a.Reset.Valid(now) {
			return a
		}
	}
	return nil
}

func (s *MemoryStore) Close(context.Context) error {
	return nil
}
