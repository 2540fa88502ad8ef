// Package auth — password hashing.
//
// WHY BCRYPT?
// bcrypt is deliberately slow, and the slowness is the point: it turns a
// brute-force attempt from microseconds into hundreds of milliseconds per
// guess. It also generates a random salt per hash and embeds it in the
// output, so no separate salt column is needed and two users with the same
// password still get different hashes.
//
// NEVER store passwords in plain text or with fast hashes (MD5, SHA-256).
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor used when the configured cost is
// out of bcrypt's accepted range.
//
// COST TUNING RULE OF THUMB:
// Pick a cost where hashing takes ~200–300ms on production hardware. Too
// low and offline cracking gets cheap; too high and login latency suffers
// under load.
const defaultCost = 12

// PasswordService provides bcrypt hashing and verification.
//
// The work factor is injected rather than hardcoded so the server can tune
// it via BCRYPT_COST and the test suites can drop to bcrypt.MinCost — a
// cost-12 hash per test adds up fast.
type PasswordService struct {
	cost int
}

// NewPasswordService creates a PasswordService with the given bcrypt cost.
// A cost outside bcrypt's valid range falls back to the default (12).
func NewPasswordService(cost int) *PasswordService {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = defaultCost
	}
	return &PasswordService{cost: cost}
}

// Hash hashes the given plaintext password with bcrypt.
//
// The output is self-contained — salt and cost are embedded in the string,
// so it can go straight into the password_hash column and
// bcrypt.CompareHashAndPassword can decode it later.
//
// Returns an error if the plaintext is too long (>72 bytes — a bcrypt limit).
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		// bcrypt silently truncates beyond 72 bytes. Reject explicitly so
		// callers aren't surprised.
		return "", fmt.Errorf("auth: password must be 72 bytes or fewer")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}

	return string(hashed), nil
}

// Verify checks whether a plaintext password matches a stored bcrypt hash.
// Returns nil on a match.
//
// bcrypt.CompareHashAndPassword compares in constant time, so this is safe
// against timing attacks.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return fmt.Errorf("auth: invalid password")
		}
		return fmt.Errorf("auth: comparing password hash: %w", err)
	}
	return nil
}
