package model

import (
	"errors"
	"strings"
)

var (
	// Input
	ErrInvalidField = errors.New("invalid field")

	// Authentication
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrUserInactive       = errors.New("user is inactive")
	ErrUsernameTaken      = errors.New("username already taken")

	// Tokens
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrMalformedToken = errors.New("malformed token")

	// Internal
	ErrCrypto = errors.New("crypto failure")
)

// FieldError is a single user-correctable input violation.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every violation found in a request so they can
// be reported together.
type ValidationErrors []FieldError

func (v ValidationErrors) Error() string {
	parts := make([]string, 0, len(v))
	for _, fe := range v {
		parts = append(parts, fe.Error())
	}
	return strings.Join(parts, "; ")
}

func (v ValidationErrors) Unwrap() error {
	return ErrInvalidField
}
