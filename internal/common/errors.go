// Package common holds the sentinel errors shared by the service layers.
// Callers match them with errors.Is; the HTTP layer maps each one to a
// status code exactly once.
package common

import (
	"errors"
	"strings"
)

var (
	// Input errors.
	ErrBadRequest = errors.New("bad request")
	ErrValidation = errors.New("validation failed")

	// Authentication and authorization errors.
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	// Repository errors.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// ErrCorruptCredential means a stored password hash could not be parsed.
	// It is a server fault, never a wrong password.
	ErrCorruptCredential = errors.New("corrupt credential store")
)

// FieldError describes a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

// ValidationError carries the field-level errors of a rejected payload.
// errors.Is(err, ErrValidation) reports true for it.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}

	return ErrValidation.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
