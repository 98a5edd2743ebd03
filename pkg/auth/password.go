package auth

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength matches the minimum length validator of the clinic portal
const MinPasswordLength = 8

// HashPassword hashes a password using bcrypt
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// VerifyPassword compares a plain password with a hashed password
func VerifyPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// IsHashed reports whether the value already is a bcrypt hash
func IsHashed(value string) bool {
	if !strings.HasPrefix(value, "$2") {
		return false
	}
	_, err := bcrypt.Cost([]byte(value))
	return err == nil
}

// ValidatePasswordStrength checks the length limits of a new password
func ValidatePasswordStrength(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("This password is too short. It must contain at least 8 characters.")
	}
	if len(password) > 128 {
		return errors.New("password must not exceed 128 characters")
	}
	return nil
}

// IsValidPhone checks the E.164-style prefix required for SMS delivery
func IsValidPhone(phone string) bool {
	if !strings.HasPrefix(phone, "+") || len(phone) < 8 || len(phone) > 15 {
		return false
	}
	for _, r := range phone[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
