package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword digests a plaintext password with bcrypt. The digest embeds a
// per-identity random salt; it is compared, never decrypted.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password against a stored digest.
// The comparison is exact-match over the full digest output.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
