package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// MinLength is the minimum accepted password length.
const MinLength = 8

// ErrTooShort is returned by Validate for passwords under MinLength.
var ErrTooShort = fmt.Errorf("password must be at least %d characters", MinLength)

// bcrypt rejects inputs over 72 bytes.
var errTooLong = errors.New("password too long")

// Validate checks the password against the local policy.
func Validate(plain string) error {
	if len(plain) < MinLength {
		return ErrTooShort
	}
	if len(plain) > 72 {
		return errTooLong
	}
	return nil
}

// Hash hashes a plain password using bcrypt.
func Hash(plain string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	return string(bytes), err
}

// Verify compares a plain password with its bcrypt hash.
func Verify(plain, hashed string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
	return err == nil
}
