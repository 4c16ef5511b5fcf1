package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// ResetTTL is how long a password reset credential stays valid.
const ResetTTL = 10 * time.Minute

// ResetCredential is a freshly issued password reset credential. Plain is
// handed to the user once; only Hash and Expires are persisted.
type ResetCredential struct {
	Plain   string
	Hash    string
	Expires time.Time
}

// NewResetCredential generates a random reset token.
func (s *TokenService) NewResetCredential() (ResetCredential, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return ResetCredential{}, fmt.Errorf("generate reset token: %w", err)
	}
	plain := hex.EncodeToString(buf)

	return ResetCredential{
		Plain:   plain,
		Hash:    HashResetToken(plain),
		Expires: s.now().UTC().Add(ResetTTL),
	}, nil
}

// HashResetToken returns the hex SHA-256 digest of a plaintext reset token.
func HashResetToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

// MatchReset reports whether plain hashes to storedHash.
func MatchReset(plain, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashResetToken(plain)), []byte(storedHash)) == 1
}
