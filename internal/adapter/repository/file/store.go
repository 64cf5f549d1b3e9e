// Package file persists the account store as a single JSON document.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/iho/minibank/internal/domain"
)

const lockRetryDelay = 5 * time.Millisecond

// Store implements usecase.AccountStore on top of one JSON file.
// Every Store on the same path, in this process or another, shares an OS
// lock on path+".lock": Load holds it shared and Save holds it exclusively
// across read, version check and rename. The file is replaced through a temp
// file and rename so a crash never leaves it truncated.
type Store struct {
	// mu serializes use of fl, which tracks one lock state per handle.
	mu   sync.Mutex
	fl   *flock.Flock
	path string
}

// NewStore creates a new Store backed by path.
func NewStore(path string) *Store {
	return &Store{path: path, fl: flock.New(path + ".lock")}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the full store. A missing file yields an empty store.
func (s *Store) Load(ctx context.Context) (*domain.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return nil, err
	}
	if _, err := s.fl.TryRLockContext(ctx, lockRetryDelay); err != nil {
		return nil, fmt.Errorf("failed to lock store: %w", err)
	}
	defer s.fl.Unlock()

	return s.read()
}

// Save writes the full store if nobody saved since it was loaded.
func (s *Store) Save(ctx context.Context, store *domain.Store) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureDir(); err != nil {
		return err
	}
	if _, err := s.fl.TryLockContext(ctx, lockRetryDelay); err != nil {
		return fmt.Errorf("failed to lock store: %w", err)
	}
	defer s.fl.Unlock()

	current, err := s.read()
	if err != nil {
		return err
	}

	if current.Version != store.Version {
		return fmt.Errorf("%w: loaded version %d, persisted version %d",
			domain.ErrStoreConflict, store.Version, current.Version)
	}

	next := *store
	next.Version++

	if err := s.write(&next); err != nil {
		return err
	}

	store.Version = next.Version
	return nil
}

// Ping checks that the store file is readable, or absent.
func (s *Store) Ping(ctx context.Context) error {
	_, err := s.Load(ctx)
	return err
}

func (s *Store) read() (*domain.Store, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return domain.NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}

	store := domain.NewStore()
	if err := json.Unmarshal(data, store); err != nil {
		return nil, fmt.Errorf("failed to decode store %s: %w", s.path, err)
	}
	if store.Accounts == nil {
		store.Accounts = make(map[string]*domain.Account)
	}

	return store, nil
}

func (s *Store) ensureDir() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	return nil
}

func (s *Store) write(store *domain.Store) error {
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "    ")
	if err := enc.Encode(store); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to encode store: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync store: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace store: %w", err)
	}

	return nil
}
