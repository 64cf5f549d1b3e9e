package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"

	"github.com/iho/minibank/internal/domain"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	pool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgxmock pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func assertExpectations(t *testing.T, pool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := pool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestStoreLoadEmpty(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("SELECT version, data FROM account_store").WillReturnError(pgx.ErrNoRows)

	store, err := newStoreWithPool(pool).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Version != 0 || len(store.Accounts) != 0 {
		t.Fatalf("expected empty store, got %+v", store)
	}
	assertExpectations(t, pool)
}

func TestStoreLoadDecodesAccounts(t *testing.T) {
	pool := newMockPool(t)
	data := []byte(`{"alice":{"username":"alice","password_hash":"h","role":"customer","balance":"30","transactions":["[t] Deposited $30.00"]}}`)
	pool.ExpectQuery("SELECT version, data FROM account_store").
		WillReturnRows(pgxmock.NewRows([]string{"version", "data"}).AddRow(int64(4), data))

	store, err := newStoreWithPool(pool).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Version != 4 {
		t.Fatalf("expected version 4, got %d", store.Version)
	}

	acc, err := store.Get("alice")
	if err != nil {
		t.Fatalf("expected alice: %v", err)
	}
	if !acc.Balance.Equal(decimal.NewFromInt(30)) || len(acc.Transactions) != 1 {
		t.Fatalf("unexpected account: %+v", acc)
	}
	assertExpectations(t, pool)
}

func TestStoreLoadQueryError(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectQuery("SELECT version, data FROM account_store").WillReturnError(errors.New("connection reset"))

	if _, err := newStoreWithPool(pool).Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	assertExpectations(t, pool)
}

func TestStoreSaveFirstInsert(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("INSERT INTO account_store").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	store := domain.NewStore()
	if err := store.Add(domain.NewAccount("alice", "h", time.Now())); err != nil {
		t.Fatalf("add: %v", err)
	}

	if err := newStoreWithPool(pool).Save(context.Background(), store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Version != 1 {
		t.Fatalf("expected version 1, got %d", store.Version)
	}
	assertExpectations(t, pool)
}

func TestStoreSaveCompareAndSwap(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("UPDATE account_store").
		WithArgs(pgxmock.AnyArg(), int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := domain.NewStore()
	store.Version = 7

	if err := newStoreWithPool(pool).Save(context.Background(), store); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if store.Version != 8 {
		t.Fatalf("expected version 8, got %d", store.Version)
	}
	assertExpectations(t, pool)
}

func TestStoreSaveStaleVersionConflicts(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("UPDATE account_store").
		WithArgs(pgxmock.AnyArg(), int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	store := domain.NewStore()
	store.Version = 2

	err := newStoreWithPool(pool).Save(context.Background(), store)
	if !errors.Is(err, domain.ErrStoreConflict) {
		t.Fatalf("expected ErrStoreConflict, got %v", err)
	}
	if store.Version != 2 {
		t.Fatalf("failed save must not bump version, got %d", store.Version)
	}
	assertExpectations(t, pool)
}

func TestStoreSaveConcurrentFirstInsertConflicts(t *testing.T) {
	pool := newMockPool(t)
	pool.ExpectExec("INSERT INTO account_store").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := newStoreWithPool(pool).Save(context.Background(), domain.NewStore())
	if !errors.Is(err, domain.ErrStoreConflict) {
		t.Fatalf("expected ErrStoreConflict, got %v", err)
	}
	assertExpectations(t, pool)
}
