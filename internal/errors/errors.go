package errors

import (
	"errors"
	"fmt"
)

// Common error types for the customs console
var (
	// Gateway classification errors
	ErrUnauthorized  = errors.New("unauthorized")
	ErrForbidden     = errors.New("access denied")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation error")
	ErrServer        = errors.New("server error")
	ErrUnreachable   = errors.New("server unreachable")
	ErrRequestFailed = errors.New("request failed")

	// Session errors
	ErrNoSession      = errors.New("no authenticated session")
	ErrSessionChanged = errors.New("session changed while request was in flight")

	// Login flow errors
	ErrCredentialsRequired = errors.New("login and password are required")
	ErrCodeRequired        = errors.New("confirmation code is required")
	ErrWrongStep           = errors.New("operation not valid for the current step")
	ErrAttemptNotFound     = errors.New("login attempt not found")

	// Company setup errors
	ErrInvalidINN = errors.New("INN must be 9 digits")

	// General errors
	ErrInternal    = errors.New("internal error")
	ErrUnsupported = errors.New("unsupported operation")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
