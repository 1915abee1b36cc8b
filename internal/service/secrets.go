package service

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/Payphone-Digital/identity/internal/constants"
	domainErrors "github.com/Payphone-Digital/identity/internal/errors"
	"golang.org/x/crypto/bcrypt"
)

// SecretHasher hashes passwords with bcrypt at a fixed cost.
type SecretHasher struct {
	cost int
	// dummy is compared against when no account matches, so an unknown
	// email costs as much as a wrong password.
	dummy []byte
}

func NewSecretHasher(cost int) (*SecretHasher, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equaliser"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}
	return &SecretHasher{cost: cost, dummy: dummy}, nil
}

// Hash rejects passwords longer than bcrypt accepts with a validation error.
func (h *SecretHasher) Hash(password string) (string, error) {
	if err := CheckPasswordLength(password); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPasswordLength applies bcrypt's byte limit.
func CheckPasswordLength(password string) error {
	if len(password) > constants.MaxPasswordBytes {
		return domainErrors.WrapError(domainErrors.ErrPasswordTooLong, bcrypt.ErrPasswordTooLong)
	}
	return nil
}

func (h *SecretHasher) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// VerifyNothing burns one comparison.
func (h *SecretHasher) VerifyNothing(password string) {
	_ = bcrypt.CompareHashAndPassword(h.dummy, []byte(password))
}

// RandomHex returns n random bytes, hex encoded.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// HashToken is the lookup key stored for a refresh secret. The secret has
// 320 bits of entropy, so an unsalted fast digest is enough.
func HashToken(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
