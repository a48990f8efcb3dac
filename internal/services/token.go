package services

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// tokenBytes gives 128 bits of entropy, rendered as 32 hex characters.
const tokenBytes = 16

// GenerateToken returns a random opaque session token as a fixed-length
// lowercase hex string.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken derives the storage digest for a token. Only the digest is ever
// persisted; lookup recomputes it from the presented token and the server
// secret and matches by equality.
func HashToken(token, secret string) string {
	sum := sha256.Sum256([]byte(token + ":" + secret))
	return hex.EncodeToString(sum[:])
}
