package domain

import "errors"

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrUsernameTaken     = errors.New("username already exists")
	ErrInvalidAmount     = errors.New("amount must be positive")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Store errors
	ErrStoreConflict    = errors.New("store was modified concurrently")
	ErrDuplicateRequest = errors.New("request already processed")
)
