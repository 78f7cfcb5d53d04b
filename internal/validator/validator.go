package validator

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrInvalidEmail    = errors.New("invalid email")
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("password must be at least 6 characters")
	ErrInvalidPhone    = errors.New("mobile number must be 10 digits")
	ErrInvalidPlayerID = errors.New("invalid player id")
	ErrInvalidUPI      = errors.New("invalid UPI id")
	ErrInvalidIFSC     = errors.New("invalid IFSC code")
	ErrInvalidAccount  = errors.New("invalid bank account number")
)

var (
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_]{3,30}$`)
	phoneRegex    = regexp.MustCompile(`^[0-9]{10}$`)
	playerIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,32}$`)
	upiRegex      = regexp.MustCompile(`^[a-zA-Z0-9._-]{2,256}@[a-zA-Z][a-zA-Z0-9]{1,63}$`)
	ifscRegex     = regexp.MustCompile(`^[A-Z]{4}0[A-Z0-9]{6}$`)
	accountRegex  = regexp.MustCompile(`^[0-9]{9,18}$`)
)

const minPasswordLength = 6

func ValidateEmail(email string) error {
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

func ValidateUsername(username string) error {
	if !usernameRegex.MatchString(username) {
		return ErrInvalidUsername
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

func ValidatePhone(phone string) error {
	if !phoneRegex.MatchString(phone) {
		return ErrInvalidPhone
	}
	return nil
}

func ValidatePlayerID(playerID string) error {
	if !playerIDRegex.MatchString(playerID) {
		return ErrInvalidPlayerID
	}
	return nil
}

func ValidateUPI(upiID string) error {
	if !upiRegex.MatchString(upiID) {
		return ErrInvalidUPI
	}
	return nil
}

// ValidateBank checks an account number and an upper-case IFSC code.
func ValidateBank(accountNumber, ifsc string) error {
	if !accountRegex.MatchString(accountNumber) {
		return ErrInvalidAccount
	}
	if !ifscRegex.MatchString(ifsc) {
		return ErrInvalidIFSC
	}
	return nil
}

// Errors collects every problem in a request body so clients see them all at once.
type Errors []string

func (e *Errors) Require(value, field string) {
	if strings.TrimSpace(value) == "" {
		*e = append(*e, field+" is required")
	}
}

func (e *Errors) Check(ok bool, message string) {
	if !ok {
		*e = append(*e, message)
	}
}

func (e *Errors) Add(err error) {
	if err != nil {
		*e = append(*e, err.Error())
	}
}

func (e Errors) Empty() bool {
	return len(e) == 0
}

func (e Errors) Error() string {
	return "validation failed: " + strings.Join(e, "; ")
}
