package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ValidateAmount rejects zero and negative amounts.
func ValidateAmount(amount decimal.Decimal) error {
	if amount.LessThanOrEqual(decimal.Zero) {
		return ErrInvalidAmount
	}
	return nil
}

const (
	maxAmountInputLen = 32
	amountScale       = 2
	maxExponent       = 15
	minExponent       = -8
)

// maxAmount bounds a single deposit or withdrawal.
var maxAmount = decimal.New(1, maxExponent)

// ParseAmount parses a free-form amount field. Amounts must fit in cents and
// stay below 10^15 in magnitude.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("%w: amount is required", ErrInvalidAmount)
	}
	if len(raw) > maxAmountInputLen {
		return decimal.Zero, fmt.Errorf("%w: amount is too long", ErrInvalidAmount)
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q is not a number", ErrInvalidAmount, raw)
	}

	// Bound the exponent before any rescaling arithmetic.
	if exp := amount.Exponent(); exp > maxExponent || exp < minExponent {
		return decimal.Zero, fmt.Errorf("%w: %q is out of range", ErrInvalidAmount, raw)
	}
	if amount.Abs().GreaterThanOrEqual(maxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, raw)
	}
	if !amount.Equal(amount.Truncate(amountScale)) {
		return decimal.Zero, fmt.Errorf("%w: %q has more than %d decimal places", ErrInvalidAmount, raw, amountScale)
	}

	return amount, nil
}

// ValidateCredentials rejects empty usernames and passwords.
// No other format or strength rules are applied.
func ValidateCredentials(username, password string) error {
	if username == "" || password == "" {
		return ErrInvalidCredentials
	}
	return nil
}
