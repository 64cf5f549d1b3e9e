package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/iho/minibank/internal/domain"
)

// AuthUseCase handles registration, authentication and sessions.
type AuthUseCase struct {
	store    AccountStore
	sessions SessionStore
	retrier  Retrier
	metrics  MetricsRecorder
	logger   zerolog.Logger
	now      Clock
	cost     int
}

// AuthConfig holds AuthUseCase dependencies.
type AuthConfig struct {
	Store    AccountStore
	Sessions SessionStore
	Retrier  Retrier
	Metrics  MetricsRecorder
	Logger   zerolog.Logger
	Clock    Clock
	// BcryptCost defaults to bcrypt.DefaultCost.
	BcryptCost int
}

// NewAuthUseCase creates a new AuthUseCase.
func NewAuthUseCase(cfg AuthConfig) *AuthUseCase {
	if cfg.Metrics == nil {
		cfg.Metrics = nopRecorder{}
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}

	return &AuthUseCase{
		store:    cfg.Store,
		sessions: cfg.Sessions,
		retrier:  cfg.Retrier,
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		now:      cfg.Clock,
		cost:     cfg.BcryptCost,
	}
}

// Register creates a customer account with a hashed password and zero balance.
func (uc *AuthUseCase) Register(ctx context.Context, username, password string) (*domain.Account, error) {
	if err := domain.ValidateCredentials(username, password); err != nil {
		uc.metrics.AuthAttempt(KindRegister, OutcomeRejected)
		return nil, err
	}

	hash, err := uc.hashPassword(password)
	if err != nil {
		uc.metrics.AuthAttempt(KindRegister, OutcomeError)
		return nil, err
	}

	var created *domain.Account
	err = update(ctx, uc.store, uc.retrier, func(s *domain.Store) error {
		acc := domain.NewAccount(username, hash, uc.now())
		if err := s.Add(acc); err != nil {
			return err
		}
		created = acc
		return nil
	})
	if err != nil {
		uc.metrics.AuthAttempt(KindRegister, outcomeOf(err))
		return nil, err
	}

	uc.metrics.AuthAttempt(KindRegister, OutcomeSuccess)
	uc.logger.Info().Str("username", username).Msg("account registered")

	return created, nil
}

// Authenticate verifies credentials and returns the account's identity.
func (uc *AuthUseCase) Authenticate(ctx context.Context, username, password string) (*domain.Identity, error) {
	if err := domain.ValidateCredentials(username, password); err != nil {
		uc.metrics.AuthAttempt(KindLogin, OutcomeRejected)
		return nil, err
	}

	s, err := uc.store.Load(ctx)
	if err != nil {
		uc.metrics.AuthAttempt(KindLogin, OutcomeError)
		return nil, err
	}

	acc, err := s.Get(username)
	if err != nil {
		uc.metrics.AuthAttempt(KindLogin, OutcomeRejected)
		return nil, domain.ErrInvalidCredentials
	}

	if err := verifyPassword(acc.PasswordHash, password); err != nil {
		uc.metrics.AuthAttempt(KindLogin, OutcomeRejected)
		uc.logger.Warn().Str("username", username).Msg("failed login attempt")
		return nil, domain.ErrInvalidCredentials
	}

	uc.metrics.AuthAttempt(KindLogin, OutcomeSuccess)

	identity := acc.Identity()
	return &identity, nil
}

// Login authenticates and opens a session, returning its token.
func (uc *AuthUseCase) Login(ctx context.Context, username, password string) (string, *domain.Identity, error) {
	identity, err := uc.Authenticate(ctx, username, password)
	if err != nil {
		return "", nil, err
	}

	token, err := uc.sessions.Create(ctx, *identity)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create session: %w", err)
	}

	return token, identity, nil
}

// Logout destroys the session behind token.
func (uc *AuthUseCase) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return uc.sessions.Destroy(ctx, token)
}

// ResolveSession returns the identity behind token with the account's current role.
func (uc *AuthUseCase) ResolveSession(ctx context.Context, token string) (*domain.Identity, error) {
	if token == "" {
		return nil, domain.ErrUnauthenticated
	}

	identity, err := uc.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrSessionNotFound) ||
			errors.Is(err, domain.ErrInvalidToken) ||
			errors.Is(err, domain.ErrExpiredToken) {
			return nil, domain.ErrUnauthenticated
		}
		return nil, err
	}

	// The role comes from the account, not the token, so role changes and
	// deleted accounts apply to live sessions.
	store, err := uc.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	acc, err := store.Get(identity.Username)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}

	return &domain.Identity{Username: acc.Username, Role: acc.Role}, nil
}

// EnsureAdmin creates the admin account if missing, or grants the admin role
// to an existing account. An existing password is left untouched.
func (uc *AuthUseCase) EnsureAdmin(ctx context.Context, username, password string) (*domain.Account, error) {
	if err := domain.ValidateCredentials(username, password); err != nil {
		return nil, err
	}

	hash, err := uc.hashPassword(password)
	if err != nil {
		return nil, err
	}

	var admin *domain.Account
	err = update(ctx, uc.store, uc.retrier, func(s *domain.Store) error {
		acc, err := s.Get(username)
		if errors.Is(err, domain.ErrAccountNotFound) {
			acc = domain.NewAccount(username, hash, uc.now())
			if err := s.Add(acc); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		acc.Role = domain.RoleAdmin
		admin = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Str("username", username).Msg("admin account ensured")

	return admin, nil
}

// SetRole changes the role of an existing account.
func (uc *AuthUseCase) SetRole(ctx context.Context, username string, role domain.Role) (*domain.Account, error) {
	if !role.IsValid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	var changed *domain.Account
	err := update(ctx, uc.store, uc.retrier, func(s *domain.Store) error {
		acc, err := s.Get(username)
		if err != nil {
			return err
		}
		acc.Role = role
		changed = acc
		return nil
	})
	if err != nil {
		return nil, err
	}

	uc.logger.Info().Str("username", username).Str("role", string(role)).Msg("account role changed")

	return changed, nil
}

func (uc *AuthUseCase) hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), uc.cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// verifyPassword verifies a password against a hash
func verifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

// outcomeOf classifies an error for metrics.
func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, domain.ErrUsernameTaken),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrDuplicateRequest):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
