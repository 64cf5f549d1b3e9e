package usecase

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/iho/minibank/internal/domain"
)

// ReportUseCase renders balances and statements from the store.
type ReportUseCase struct {
	store AccountStore
}

// NewReportUseCase creates a new ReportUseCase.
func NewReportUseCase(store AccountStore) *ReportUseCase {
	return &ReportUseCase{store: store}
}

// BalanceLine is one row of the all-balances report.
type BalanceLine struct {
	Username string
	Balance  decimal.Decimal
}

// Statement is one user's transaction history.
type Statement struct {
	Username     string
	Transactions []string
}

// Dashboard returns the user's account.
func (uc *ReportUseCase) Dashboard(ctx context.Context, username string) (*domain.Account, error) {
	s, err := uc.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.Get(username)
}

// Statements returns the user's own transactions in chronological order.
func (uc *ReportUseCase) Statements(ctx context.Context, username string) ([]string, error) {
	acc, err := uc.Dashboard(ctx, username)
	if err != nil {
		return nil, err
	}

	out := make([]string, len(acc.Transactions))
	copy(out, acc.Transactions)
	return out, nil
}

// AllBalances lists every account's balance. Admin only.
func (uc *ReportUseCase) AllBalances(ctx context.Context, viewer domain.Identity) ([]BalanceLine, error) {
	accounts, err := uc.allAccounts(ctx, viewer)
	if err != nil {
		return nil, err
	}

	lines := make([]BalanceLine, 0, len(accounts))
	for _, acc := range accounts {
		lines = append(lines, BalanceLine{Username: acc.Username, Balance: acc.Balance})
	}
	return lines, nil
}

// AllStatements lists every account's transactions. Admin only.
func (uc *ReportUseCase) AllStatements(ctx context.Context, viewer domain.Identity) ([]Statement, error) {
	accounts, err := uc.allAccounts(ctx, viewer)
	if err != nil {
		return nil, err
	}

	statements := make([]Statement, 0, len(accounts))
	for _, acc := range accounts {
		txs := make([]string, len(acc.Transactions))
		copy(txs, acc.Transactions)
		statements = append(statements, Statement{Username: acc.Username, Transactions: txs})
	}
	return statements, nil
}

// ListAccounts returns every account in registration order, without access checks.
// It backs operator tooling.
func (uc *ReportUseCase) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	s, err := uc.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return s.Ordered(), nil
}

func (uc *ReportUseCase) allAccounts(ctx context.Context, viewer domain.Identity) ([]*domain.Account, error) {
	if !viewer.Role.CanViewAll() {
		return nil, domain.ErrForbidden
	}
	return uc.ListAccounts(ctx)
}
