package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword generates a bcrypt hash of the password.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(bytes), nil
}

// CheckPasswordHash compares a password with a bcrypt hash.
func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// NewDeleteToken generates a delete secret with 256 bits of entropy,
// hex-encoded to 64 characters. The plaintext is returned to the uploader
// once and never stored.
func NewDeleteToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate delete token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashToken returns the hex sha256 digest of a delete secret. Only this
// digest is persisted alongside the upload record.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// VerifyToken reports whether the presented secret matches the stored
// digest. The digests are compared in constant time.
func VerifyToken(token, storedHash string) bool {
	if storedHash == "" {
		return false
	}
	presented := HashToken(token)
	return subtle.ConstantTimeCompare([]byte(presented), []byte(storedHash)) == 1
}
