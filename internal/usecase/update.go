package usecase

import (
	"context"

	"github.com/iho/minibank/internal/domain"
)

// update runs one load-mutate-save cycle, re-running it when the retrier decides to.
func update(ctx context.Context, store AccountStore, retrier Retrier, mutate func(*domain.Store) error) error {
	op := func() error {
		s, err := store.Load(ctx)
		if err != nil {
			return err
		}

		if err := mutate(s); err != nil {
			return err
		}

		return store.Save(ctx, s)
	}

	if retrier == nil {
		return op()
	}

	return retrier.Retry(ctx, op)
}
