package utils

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// PasswordHasher hashes and compares passwords with a tunable bcrypt cost.
type PasswordHasher struct {
	cost int
}

func NewPasswordHasher(cost int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

// Hash hashes a plain text password.
func (h *PasswordHasher) Hash(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), h.cost)
	return string(b), err
}

// Compare checks a plain text password against a stored hash.
func (h *PasswordHasher) Compare(hash, pw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pw)) == nil
}

const specialChars = `!@#$%^&*(),.?":{}|<>`

// ValidatePassword enforces the password policy: at least 8 characters, one
// uppercase letter, one digit and one special character. Returns a
// ValidationError naming the first failed rule.
func ValidatePassword(pw string) *AppError {
	if len(pw) < 8 {
		return ValidationError("password must be at least 8 characters long")
	}
	if !strings.ContainsFunc(pw, func(r rune) bool { return r >= 'A' && r <= 'Z' }) {
		return ValidationError("password must contain at least one uppercase letter")
	}
	if !strings.ContainsFunc(pw, func(r rune) bool { return r >= '0' && r <= '9' }) {
		return ValidationError("password must contain at least one number")
	}
	if !strings.ContainsAny(pw, specialChars) {
		return ValidationError("password must contain at least one special character")
	}
	return nil
}
