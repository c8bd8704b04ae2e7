// Package users registers identities and their profile records.
package users

import (
	"context"
	"errors"
	"time"
)

// Registration errors. All of them are caller errors.
var (
	ErrEmailExists     = errors.New("email already registered")
	ErrInvalidEmail    = errors.New("invalid email address")
	ErrWeakPassword    = errors.New("password must be at least 6 characters")
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
)

// Password length bounds. bcrypt rejects inputs longer than MaxPasswordBytes.
const (
	MinPasswordLength = 6
	MaxPasswordBytes  = 72
)

// User is a registered identity as returned to callers.
type User struct {
	ID        string    `json:"uid"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Identity is what a Store persists: the user plus its credential.
type Identity struct {
	User
	PasswordHash []byte
}

// Store persists an identity and its profile record atomically.
type Store interface {
	// Create stores the identity and profile, or returns ErrEmailExists.
	Create(ctx context.Context, identity *Identity) error
}

// IsValidation reports whether err is a caller error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmailExists) ||
		errors.Is(err, ErrInvalidEmail) ||
		errors.Is(err, ErrWeakPassword) ||
		errors.Is(err, ErrPasswordTooLong)
}
