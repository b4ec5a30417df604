// Package auth — password hashing.
//
// bcrypt is deliberately slow, salts every hash, and embeds salt and cost in
// its output, so a single column stores everything Verify needs:
//
//	$2a$12$<22-char salt><31-char hash>
//	 ^   ^
//	 |   cost (2^12 rounds)
//	 version
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when configuration leaves
// BCRYPT_COST unset. Tune it so one hash takes ~250ms on production hardware.
const DefaultCost = 12

// maxPasswordBytes is bcrypt's input limit; longer inputs are silently
// truncated by the algorithm, so we refuse them.
const maxPasswordBytes = 72

// ErrPasswordMismatch is returned by Verify when the password is wrong.
var ErrPasswordMismatch = errors.New("auth: invalid password")

// ErrPasswordTooLong is returned by Hash for inputs over maxPasswordBytes.
// The limit is in bytes, so a short password of multi-byte runes can hit it.
var ErrPasswordTooLong = fmt.Errorf("auth: password must be %d bytes or fewer", maxPasswordBytes)

// PasswordService provides bcrypt hashing and verification.
//
// It's a struct (not free functions) so the cost can be injected: tests use
// bcrypt.MinCost (4) and run in milliseconds.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService. Costs outside bcrypt's
// accepted range fall back to DefaultCost.
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash hashes the plaintext password. Store the result as-is.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks plaintext against a stored hash. It returns nil on a match,
// ErrPasswordMismatch on a wrong password, and a wrapped error when the
// stored hash itself is unusable.
//
// bcrypt.CompareHashAndPassword compares in constant time.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrPasswordMismatch
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
