package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/minibank/internal/domain"
)

const (
	selectStoreQuery = `SELECT version, data FROM account_store WHERE id = 1`

	insertStoreQuery = `
		INSERT INTO account_store (id, version, data, updated_at)
		VALUES (1, 1, $1, now())
		ON CONFLICT (id) DO NOTHING`

	updateStoreQuery = `
		UPDATE account_store
		SET data = $1, version = version + 1, updated_at = now()
		WHERE id = 1 AND version = $2`
)

type pgxPool interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// Store implements usecase.AccountStore as a single versioned JSONB row.
type Store struct {
	pool pgxPool
}

// NewStore creates a new Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return newStoreWithPool(pool)
}

func newStoreWithPool(pool pgxPool) *Store {
	return &Store{pool: pool}
}

// Load reads the full store. A missing row yields an empty store.
func (s *Store) Load(ctx context.Context) (*domain.Store, error) {
	var (
		version int64
		data    []byte
	)

	err := s.pool.QueryRow(ctx, selectStoreQuery).Scan(&version, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account store: %w", err)
	}

	store := domain.NewStore()
	store.Version = version
	if len(data) > 0 {
		if err := json.Unmarshal(data, &store.Accounts); err != nil {
			return nil, fmt.Errorf("failed to decode account store: %w", err)
		}
	}
	if store.Accounts == nil {
		store.Accounts = make(map[string]*domain.Account)
	}

	return store, nil
}

// Save writes the full store if its version is still current.
func (s *Store) Save(ctx context.Context, store *domain.Store) error {
	data, err := json.Marshal(store.Accounts)
	if err != nil {
		return fmt.Errorf("failed to encode account store: %w", err)
	}

	var tag pgconn.CommandTag
	if store.Version == 0 {
		tag, err = s.pool.Exec(ctx, insertStoreQuery, data)
	} else {
		tag, err = s.pool.Exec(ctx, updateStoreQuery, data, store.Version)
	}
	if err != nil {
		return fmt.Errorf("failed to save account store: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: version %d is stale", domain.ErrStoreConflict, store.Version)
	}

	store.Version++
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
