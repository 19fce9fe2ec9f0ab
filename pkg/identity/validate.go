package identity

import (
	"net/mail"
	"strings"
)

const minPasswordLength = 6

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, "@") {
		return newError(CodeInvalidEmail, "invalid email %q", email)
	}
	return nil
}

func validatePassword(password string) error {
	if len(password) < minPasswordLength {
		return newError(CodeWeakPassword, "password must be at least %d characters", minPasswordLength)
	}
	return nil
}

func validateCredentials(email, password string) error {
	if err := validateEmail(email); err != nil {
		return err
	}
	return validatePassword(password)
}
