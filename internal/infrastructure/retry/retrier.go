package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"github.com/iho/minibank/internal/domain"
)

// PostgreSQL error codes for retryable errors.
const (
	pgErrDeadlock             = "40P01"
	pgErrSerializationFailure = "40001"
)

// Defaults for Retrier.
const (
	DefaultMaxRetries      = 5
	DefaultInitialInterval = 20 * time.Millisecond
	DefaultMaxInterval     = 500 * time.Millisecond
	DefaultMaxElapsedTime  = 10 * time.Second
)

// Retrier implements usecase.Retrier with exponential backoff.
// It retries stale store writes and transient PostgreSQL conflicts.
type Retrier struct {
	maxRetries      int
	initialInterval time.Duration
	maxInterval     time.Duration
	maxElapsedTime  time.Duration
	logger          zerolog.Logger
	onRetry         func(err error)
}

// Option configures a Retrier.
type Option func(*Retrier)

// WithMaxRetries sets how many retries follow the first attempt.
func WithMaxRetries(n int) Option {
	return func(r *Retrier) {
		if n >= 0 {
			r.maxRetries = n
		}
	}
}

// WithIntervals overrides the backoff intervals.
func WithIntervals(initial, max, elapsed time.Duration) Option {
	return func(r *Retrier) {
		r.initialInterval = initial
		r.maxInterval = max
		r.maxElapsedTime = elapsed
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Retrier) {
		r.logger = logger
	}
}

// OnRetry registers a hook called before every retry.
func OnRetry(fn func(err error)) Option {
	return func(r *Retrier) {
		r.onRetry = fn
	}
}

// NewRetrier creates a new Retrier with default settings.
func NewRetrier(opts ...Option) *Retrier {
	r := &Retrier{
		maxRetries:      DefaultMaxRetries,
		initialInterval: DefaultInitialInterval,
		maxInterval:     DefaultMaxInterval,
		maxElapsedTime:  DefaultMaxElapsedTime,
		logger:          zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Retry executes an operation with exponential backoff on retryable errors.
func (r *Retrier) Retry(ctx context.Context, operation func() error) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval
	b.MaxElapsedTime = r.maxElapsedTime

	retryCount := 0

	return backoff.Retry(func() error {
		err := operation()
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}

		retryCount++
		if retryCount > r.maxRetries {
			return backoff.Permanent(err)
		}

		if r.onRetry != nil {
			r.onRetry(err)
		}

		r.logger.Warn().
			Err(err).
			Int("retry", retryCount).
			Msg("store write conflict, retrying")

		return err
	}, backoff.WithContext(b, ctx))
}

// IsRetryable reports whether err should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, domain.ErrStoreConflict) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgErrDeadlock, pgErrSerializationFailure:
			return true
		}
	}
	return false
}
