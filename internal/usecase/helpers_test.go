package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/iho/minibank/internal/domain"
)

// memoryStore is an AccountStore double with compare-and-swap semantics.
type memoryStore struct {
	mu    sync.Mutex
	data  []byte
	saves int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{}
}

func (m *memoryStore) Load(ctx context.Context) (*domain.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := domain.NewStore()
	if m.data == nil {
		return s, nil
	}
	if err := json.Unmarshal(m.data, s); err != nil {
		return nil, err
	}
	return s, nil
}

func (m *memoryStore) Save(ctx context.Context, s *domain.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := int64(0)
	if m.data != nil {
		var persisted domain.Store
		if err := json.Unmarshal(m.data, &persisted); err != nil {
			return err
		}
		current = persisted.Version
	}
	if current != s.Version {
		return domain.ErrStoreConflict
	}

	s.Version++
	data, err := json.Marshal(s)
	if err != nil {
		s.Version--
		return err
	}
	m.data = data
	m.saves++
	return nil
}

// loopRetrier retries store conflicts without sleeping.
type loopRetrier struct {
	attempts int
	max      int
}

func (r *loopRetrier) Retry(ctx context.Context, op func() error) error {
	for {
		r.attempts++
		err := op()
		if !errors.Is(err, domain.ErrStoreConflict) || r.attempts >= r.max {
			return err
		}
	}
}

type fakeSessions struct {
	mu       sync.Mutex
	sessions map[string]domain.Identity
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{sessions: map[string]domain.Identity{}}
}

func (f *fakeSessions) Create(ctx context.Context, identity domain.Identity) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "tok-" + identity.Username
	f.sessions[token] = identity
	return token, nil
}

func (f *fakeSessions) Resolve(ctx context.Context, token string) (*domain.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	identity, ok := f.sessions[token]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return &identity, nil
}

func (f *fakeSessions) Destroy(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, token)
	return nil
}

type countingRecorder struct {
	mu     sync.Mutex
	ledger map[string]int
	auth   map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{ledger: map[string]int{}, auth: map[string]int{}}
}

func (c *countingRecorder) LedgerOperation(kind, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ledger[kind+"/"+outcome]++
}

func (c *countingRecorder) AuthAttempt(kind, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth[kind+"/"+outcome]++
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}
