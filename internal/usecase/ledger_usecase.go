package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/minibank/internal/domain"
)

// LedgerUseCase handles deposits and withdrawals.
type LedgerUseCase struct {
	store          AccountStore
	retrier        Retrier
	idempotency    IdempotencyStore
	idempotencyTTL time.Duration
	metrics        MetricsRecorder
	logger         zerolog.Logger
	now            Clock
}

// LedgerConfig holds LedgerUseCase dependencies.
type LedgerConfig struct {
	Store   AccountStore
	Retrier Retrier
	// Idempotency is optional; without it keys are ignored.
	Idempotency    IdempotencyStore
	IdempotencyTTL time.Duration
	Metrics        MetricsRecorder
	Logger         zerolog.Logger
	Clock          Clock
}

// NewLedgerUseCase creates a new LedgerUseCase.
func NewLedgerUseCase(cfg LedgerConfig) *LedgerUseCase {
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = IdempotencyKeyTTL
	}

	return &LedgerUseCase{
		store:          cfg.Store,
		retrier:        cfg.Retrier,
		idempotency:    cfg.Idempotency,
		idempotencyTTL: cfg.IdempotencyTTL,
		metrics:        cfg.Metrics,
		logger:         cfg.Logger,
		now:            cfg.Clock,
	}
}

// DepositInput represents input for a deposit.
type DepositInput struct {
	Username       string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// WithdrawInput represents input for a withdrawal.
type WithdrawInput struct {
	Username       string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Deposit credits the user's account.
func (uc *LedgerUseCase) Deposit(ctx context.Context, input DepositInput) (*domain.Account, error) {
	return uc.apply(ctx, KindDeposit, input.Username, input.Amount, input.IdempotencyKey,
		func(acc *domain.Account, at time.Time) error {
			return acc.Deposit(input.Amount, at)
		})
}

// Withdraw debits the user's account. The balance never goes below zero.
func (uc *LedgerUseCase) Withdraw(ctx context.Context, input WithdrawInput) (*domain.Account, error) {
	return uc.apply(ctx, KindWithdraw, input.Username, input.Amount, input.IdempotencyKey,
		func(acc *domain.Account, at time.Time) error {
			return acc.Withdraw(input.Amount, at)
		})
}

func (uc *LedgerUseCase) apply(
	ctx context.Context,
	kind, username string,
	amount decimal.Decimal,
	idempotencyKey string,
	mutate func(*domain.Account, time.Time) error,
) (*domain.Account, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		uc.metrics.LedgerOperation(kind, OutcomeRejected)
		return nil, err
	}

	key := ""
	if uc.idempotency != nil && idempotencyKey != "" {
		key = kind + ":" + username + ":" + idempotencyKey

		exists, _, err := uc.idempotency.CheckAndSet(ctx, key, nil, uc.idempotencyTTL)
		if err != nil {
			uc.metrics.LedgerOperation(kind, OutcomeError)
			return nil, err
		}
		if exists {
			uc.metrics.LedgerOperation(kind, OutcomeRejected)
			return nil, domain.ErrDuplicateRequest
		}
	}

	var result *domain.Account
	err := update(ctx, uc.store, uc.retrier, func(s *domain.Store) error {
		acc, err := s.Get(username)
		if err != nil {
			return err
		}
		if err := mutate(acc, uc.now()); err != nil {
			return err
		}
		result = acc
		return nil
	})

	if key != "" {
		uc.finishIdempotency(ctx, key, err)
	}

	uc.metrics.LedgerOperation(kind, outcomeOf(err))

	if err != nil {
		return nil, err
	}

	uc.logger.Info().
		Str("username", username).
		Str("operation", kind).
		Str("amount", amount.StringFixed(2)).
		Str("balance", result.Balance.StringFixed(2)).
		Msg("ledger operation applied")

	return result, nil
}

// finishIdempotency marks a key done on success and releases it on failure
// so that a corrected request can go through.
func (uc *LedgerUseCase) finishIdempotency(ctx context.Context, key string, opErr error) {
	var err error
	if opErr != nil {
		err = uc.idempotency.Delete(ctx, key)
	} else {
		err = uc.idempotency.Update(ctx, key, []byte(idempotencyDone), uc.idempotencyTTL)
	}

	if err != nil {
		uc.logger.Error().Err(err).Str("key", key).Msg("failed to finalize idempotency key")
	}
}
