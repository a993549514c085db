package utils

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/google/uuid"
)

// NewResetToken generates a single-use password reset token. The raw value
// travels to the user by email; only its hash is ever stored.
func NewResetToken() (raw, hash string) {
	raw = uuid.NewString()
	return raw, HashResetToken(raw)
}

// HashResetToken derives the stored one-way hash of a raw reset token.
func HashResetToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
