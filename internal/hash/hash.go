package hash

import (
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/taskmaster-pro/taskmaster/internal/apperr"
)

func HashPassword(password string) (string, error) {
	hashBytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashBytes), nil
}

// CheckPassword compares in constant time via bcrypt.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidatePassword enforces the account password policy: at least 8
// characters, one uppercase letter and one digit.
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return apperr.Validation("password must be at least 8 characters long")
	}
	var upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper {
		return apperr.Validation("password must contain at least one uppercase letter")
	}
	if !digit {
		return apperr.Validation("password must contain at least one digit")
	}
	return nil
}
