package records

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and checks passwords with bcrypt at a fixed cost.
type Hasher struct {
	Cost int
}

// DefaultHasher uses bcrypt.DefaultCost.
var DefaultHasher = Hasher{Cost: bcrypt.DefaultCost}

func (h Hasher) Hash(password string) (string, error) {
	cost := h.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", ErrPasswordTooLong
	}
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Check returns ErrInvalidCredentials when password does not match hash.
// Hash never accepts an over-long password, so one can never match.
func (h Hasher) Check(hash, password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) || errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("check password: %w", err)
	}
	return nil
}
