package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionTimeLayout is the timestamp layout used in transaction records.
const TransactionTimeLayout = "2006-01-02 15:04:05.000000"

// Account represents a registered user's credentials, balance and history.
type Account struct {
	Username     string          `json:"username"`
	PasswordHash string          `json:"password_hash"`
	Role         Role            `json:"role"`
	Balance      decimal.Decimal `json:"balance"`
	Transactions []string        `json:"transactions"`
	CreatedAt    time.Time       `json:"created_at"`
}

// NewAccount returns a customer account with zero balance and no history.
func NewAccount(username, passwordHash string, now time.Time) *Account {
	return &Account{
		Username:     username,
		PasswordHash: passwordHash,
		Role:         RoleCustomer,
		Balance:      decimal.Zero,
		Transactions: []string{},
		CreatedAt:    now,
	}
}

// IsAdmin reports whether the account carries the admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// Identity returns the session identity for the account.
func (a *Account) Identity() Identity {
	return Identity{Username: a.Username, Role: a.Role}
}

// Deposit credits amount and appends a "Deposited" record.
func (a *Account) Deposit(amount decimal.Decimal, at time.Time) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}

	a.Balance = a.Balance.Add(amount)
	a.appendRecord(at, "Deposited", amount)

	return nil
}

// Withdraw debits amount and appends a "Withdrew" record.
// The balance never goes below zero.
func (a *Account) Withdraw(amount decimal.Decimal, at time.Time) error {
	if err := ValidateAmount(amount); err != nil {
		return err
	}

	if amount.GreaterThan(a.Balance) {
		return ErrInsufficientFunds
	}

	a.Balance = a.Balance.Sub(amount)
	a.appendRecord(at, "Withdrew", amount)

	return nil
}

func (a *Account) appendRecord(at time.Time, verb string, amount decimal.Decimal) {
	a.Transactions = append(a.Transactions, FormatTransaction(at, verb, amount))
}

// FormatTransaction renders a human-readable transaction record.
func FormatTransaction(at time.Time, verb string, amount decimal.Decimal) string {
	return fmt.Sprintf("[%s] %s %s", at.Format(TransactionTimeLayout), verb, FormatMoney(amount))
}

// FormatMoney renders an amount as dollars with two decimals.
func FormatMoney(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
