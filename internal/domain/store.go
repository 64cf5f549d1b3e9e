package domain

import "sort"

// Store is the full set of accounts, persisted as one unit.
// Version is bumped by every successful save and guards against lost updates.
type Store struct {
	Version  int64               `json:"version"`
	Accounts map[string]*Account `json:"accounts"`
}

// NewStore returns an empty store at version 0.
func NewStore() *Store {
	return &Store{Accounts: make(map[string]*Account)}
}

// Get returns the account for username.
func (s *Store) Get(username string) (*Account, error) {
	acc, ok := s.Accounts[username]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc, nil
}

// Exists reports whether username is registered.
func (s *Store) Exists(username string) bool {
	_, ok := s.Accounts[username]
	return ok
}

// Add inserts a new account. It fails if the username is taken.
func (s *Store) Add(acc *Account) error {
	if s.Accounts == nil {
		s.Accounts = make(map[string]*Account)
	}
	if s.Exists(acc.Username) {
		return ErrUsernameTaken
	}
	s.Accounts[acc.Username] = acc
	return nil
}

// Ordered returns accounts in registration order, ties broken by username.
func (s *Store) Ordered() []*Account {
	out := make([]*Account, 0, len(s.Accounts))
	for _, acc := range s.Accounts {
		out = append(out, acc)
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Username < out[j].Username
	})

	return out
}
