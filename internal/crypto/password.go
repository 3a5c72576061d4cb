package crypto

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// HashPassword derives a salted password record: a fresh 32-byte salt,
// PBKDF2-HMAC-SHA256 over (password, salt), then base64(salt || hash).
func (p *CryptoProvider) HashPassword(password string) (string, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	hash := pbkdf2.Key([]byte(password), salt, p.iterations, HashSize, sha256.New)

	record := make([]byte, 0, SaltSize+HashSize)
	record = append(record, salt...)
	record = append(record, hash...)

	return base64.StdEncoding.EncodeToString(record), nil
}

// VerifyPassword checks a password against a stored record. It is a
// user-facing boolean gate: every malformed-record condition returns
// false, never an error.
func (p *CryptoProvider) VerifyPassword(password, record string) bool {
	decoded, err := base64.StdEncoding.DecodeString(record)
	if err != nil {
		return false
	}
	if len(decoded) < SaltSize {
		return false
	}

	salt := decoded[:SaltSize]
	storedHash := decoded[SaltSize:]

	hash := pbkdf2.Key([]byte(password), salt, p.iterations, HashSize, sha256.New)

	return hmac.Equal(hash, storedHash)
}

// RandomToken generates a URL-safe random token of the given length,
// used for session identifiers and verification nonces.
func (p *CryptoProvider) RandomToken(length int) (string, error) {
	if length <= 0 {
		return "", errors.New("token length must be positive")
	}

	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}

	return base64.URLEncoding.EncodeToString(buf)[:length], nil
}
