package todo

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("todo not found")

// ValidationError reports a missing or malformed request field. It is
// always raised before the store is touched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Message == "" {
		return e.Field + " is required"
	}
	return e.Message
}

func Required(field string) error {
	return &ValidationError{Field: field, Message: field + " is required"}
}

func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf("%s is invalid: %v", field, err)}
}

// StorageError wraps a failure coming back from the database driver.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
