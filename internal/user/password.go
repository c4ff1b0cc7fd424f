package user

import (
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// tests lower this to bcrypt.MinCost
var bcryptCost = 12

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NormalizeEmail lowercases and trims; emails are stored normalized.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
