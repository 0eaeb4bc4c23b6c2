package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidNumber    = errors.New("number must be a finite decimal value")
	ErrEmptyComment     = errors.New("comment cannot be empty")
	ErrCommentTooLong   = fmt.Errorf("comment exceeds %d characters", MaxCommentLength)
	ErrInvalidOperation = errors.New("operation must be add or subtract")
	ErrMissingOperation = errors.New("operation is required")
	ErrMissingDate      = errors.New("date is required")
)

// ValidationError reports a malformed or missing submission field.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
