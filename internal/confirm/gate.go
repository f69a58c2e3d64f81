// Package confirm implements the shared password prompt shown before a bulk
// delete. It is a confirmation step for the operator, not access control:
// every client that passes authentication knows the password.
package confirm

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const DefaultPassword = "9999"

var ErrMismatch = errors.New("incorrect confirmation password")

type Gate struct {
	hash []byte
}

func New(password string) (*Gate, error) {
	if password == "" {
		password = DefaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash confirmation password: %w", err)
	}
	return &Gate{hash: hash}, nil
}

// Check returns ErrMismatch unless password equals the configured one.
func (g *Gate) Check(password string) error {
	if err := bcrypt.CompareHashAndPassword(g.hash, []byte(password)); err != nil {
		return ErrMismatch
	}
	return nil
}
