// Package password wraps bcrypt hashing for user credentials.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinLength matches the registration validation on the client.
	MinLength = 8
	// bcrypt truncates at 72 bytes, so longer inputs are rejected outright.
	maxLength = 72
)

var (
	ErrTooShort = errors.New("password must be at least 8 characters")
	ErrTooLong  = errors.New("password must be at most 72 bytes")
)

// Hash produces a bcrypt hash at the given cost.
func Hash(plain string, cost int) (string, error) {
	if len(plain) < MinLength {
		return "", ErrTooShort
	}
	if len(plain) > maxLength {
		return "", ErrTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify reports whether plain matches the stored hash.
func Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
