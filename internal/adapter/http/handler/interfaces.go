package handler

import (
	"context"

	"github.com/iho/minibank/internal/domain"
	"github.com/iho/minibank/internal/usecase"
)

// AuthService defines registration and session operations used by handlers.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*domain.Account, error)
	Login(ctx context.Context, username, password string) (string, *domain.Identity, error)
	Logout(ctx context.Context, token string) error
}

// LedgerService defines balance-changing operations used by handlers.
type LedgerService interface {
	Deposit(ctx context.Context, input usecase.DepositInput) (*domain.Account, error)
	Withdraw(ctx context.Context, input usecase.WithdrawInput) (*domain.Account, error)
}

// ReportService defines read-only views used by handlers.
type ReportService interface {
	Dashboard(ctx context.Context, username string) (*domain.Account, error)
	Statements(ctx context.Context, username string) ([]string, error)
	AllBalances(ctx context.Context, viewer domain.Identity) ([]usecase.BalanceLine, error)
	AllStatements(ctx context.Context, viewer domain.Identity) ([]usecase.Statement, error)
}

// KeyGenerator generates idempotency keys embedded in forms.
type KeyGenerator interface {
	Generate() string
}

var (
	_ AuthService   = (*usecase.AuthUseCase)(nil)
	_ LedgerService = (*usecase.LedgerUseCase)(nil)
	_ ReportService = (*usecase.ReportUseCase)(nil)
)
