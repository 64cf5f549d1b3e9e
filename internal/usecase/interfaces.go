package usecase

import (
	"context"
	"time"

	"github.com/iho/minibank/internal/domain"
)

// AccountStore loads and saves the whole set of accounts as one unit.
type AccountStore interface {
	// Load returns the full store, or an empty store at version 0 if none was saved yet.
	Load(ctx context.Context) (*domain.Store, error)
	// Save overwrites the persisted store if its version still equals store.Version,
	// and bumps store.Version. Otherwise it returns domain.ErrStoreConflict.
	Save(ctx context.Context, store *domain.Store) error
}

// SessionStore maps opaque session tokens to identities.
type SessionStore interface {
	Create(ctx context.Context, identity domain.Identity) (string, error)
	Resolve(ctx context.Context, token string) (*domain.Identity, error)
	Destroy(ctx context.Context, token string) error
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key so the request can be retried.
	Delete(ctx context.Context, key string) error
}

// Retrier re-runs an operation on transient failures such as store conflicts.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// MetricsRecorder receives business events.
type MetricsRecorder interface {
	LedgerOperation(kind, outcome string)
	AuthAttempt(kind, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) LedgerOperation(string, string) {}
func (nopRecorder) AuthAttempt(string, string)     {}

// Clock returns the current time.
type Clock func() time.Time
