package application

import (
	"crypto/subtle"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

//ErrWeakPassword is returned when a password does not satisfy the password policy
var ErrWeakPassword = errors.New("Password must be at least 8 characters long, contain at least one uppercase letter and at least one number")

//ValidatePassword checks that a password is at least 8 characters long and contains
//at least one uppercase letter and one digit, in any position
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < minPasswordLength {
		return ErrWeakPassword
	}

	hasUpper, hasDigit := false, false
	for _, c := range password {
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}

	if !hasUpper || !hasDigit {
		return ErrWeakPassword
	}

	return nil
}

//HashPassword returns a salted bcrypt hash of the password
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

//VerifyPassword compares a password with a stored value. Values that are not bcrypt
//hashes are rows written before hashing was introduced; they are compared in constant
//time and reported as legacy so that the caller can upgrade them.
func VerifyPassword(password, stored string) (match bool, legacy bool) {
	if isBcryptHash(stored) {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(password)) == nil, false
	}

	return subtle.ConstantTimeCompare([]byte(stored), []byte(password)) == 1, true
}

func isBcryptHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
