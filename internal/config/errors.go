package config

import (
	"errors"
	"fmt"
)

// Errors returned by configuration operations.
var (
	// ErrFileNotFound indicates the configuration file doesn't exist.
	ErrFileNotFound = errors.New("config file not found")

	// ErrInvalidValue indicates a value could not be decoded into its field.
	ErrInvalidValue = errors.New("invalid config value")

	// ErrValidationFailed indicates the value fails validation.
	ErrValidationFailed = errors.New("validation failed")
)

// ValidationError describes one invalid field.
type ValidationError struct {
	// Field is the dotted key, e.g. "process.grace_period".
	Field string
	// Message describes the problem.
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Unwrap returns ErrValidationFailed.
func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}
