package domain

import "errors"

// Role represents an account's access level
type Role string

const (
	// RoleAdmin can view every account's balance and statements
	RoleAdmin Role = "admin"

	// RoleCustomer can only operate on its own account
	RoleCustomer Role = "customer"
)

var validRoles = map[Role]bool{
	RoleAdmin:    true,
	RoleCustomer: true,
}

// IsValid checks if the role is a valid role
func (r Role) IsValid() bool {
	return validRoles[r]
}

// CanViewAll checks if the role can view all accounts
func (r Role) CanViewAll() bool {
	return r == RoleAdmin
}

// Identity is the authenticated principal attached to a session.
type Identity struct {
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// Authentication errors
var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUnauthenticated    = errors.New("authentication required")
	ErrForbidden          = errors.New("insufficient role for this operation")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidToken       = errors.New("invalid token")
	ErrExpiredToken       = errors.New("token has expired")
)
