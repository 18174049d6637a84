package security

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// passwordHashCost is the bcrypt work factor applied to member and admin
// credentials. Raising it only affects newly stored hashes.
const passwordHashCost = 12

// ErrEmptyPassword is returned when an empty plaintext is submitted for hashing.
var ErrEmptyPassword = errors.New("password must not be empty")

// HashPassword derives a bcrypt hash for storing a credential at rest.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), passwordHashCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// CheckPassword reports whether plaintext matches a stored bcrypt hash.
// Empty inputs never match.
func CheckPassword(hash, password string) bool {
	if hash == "" || password == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
