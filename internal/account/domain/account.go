package domain

import (
	"errors"
	"time"
)

// Account is a registered wallet holder. Handle is the login identity
// sessions are keyed by; Email is for recovery and notices.
type Account struct {
	ID           string
	Email        string
	Handle       string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Validate checks required fields. Format rules (email shape, password
// strength) live in the account service.
func (a *Account) Validate() error {
	if a.ID == "" {
		return errors.New("account id is required")
	}
	if a.Email == "" {
		return errors.New("email is required")
	}
	if a.Handle == "" {
		return errors.New("handle is required")
	}
	if a.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	return nil
}
