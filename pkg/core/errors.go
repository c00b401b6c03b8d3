package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrMissingField  = errors.New("missing field")
	ErrInvalidRange  = errors.New("from date is after to date")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidValue  = errors.New("unsupported value")
	ErrInvalidSchema = errors.New("invalid schema")
)

// ValidationError reports input that cannot become (or stay) a valid record.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err was caused by rejected input.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
