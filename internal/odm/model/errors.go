package model

import (
	"errors"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/validation"
)

// Common model error types
var (
	// ErrNotFound is returned when no document matches
	ErrNotFound = errors.New("document not found")

	// ErrValidationFailed wraps the *validation.ValidationErrors of a rejected write
	ErrValidationFailed = errors.New("validation failed")

	// ErrVersionConflict is returned when a document was saved by someone else
	// since it was loaded
	ErrVersionConflict = errors.New("document was modified since it was loaded")

	// ErrInvalidUpdate is returned for malformed update documents
	ErrInvalidUpdate = errors.New("invalid update")

	// ErrWrongClass is returned when a document is handed to the model of an
	// unrelated class
	ErrWrongClass = errors.New("document does not belong to this model")

	// ErrNotReference is returned when populating a path that is not a reference
	ErrNotReference = errors.New("path is not a reference")

	// ErrUnknownClass is returned when a referenced class is not registered
	ErrUnknownClass = errors.New("class is not registered")

	// ErrClosed is returned when a closed Connection is used
	ErrClosed = errors.New("connection is closed")
)

// IsNotFound returns true if the error is ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsVersionConflict returns true if the error is ErrVersionConflict
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}

// IsDuplicateKey returns true if a driver rejected a write on a unique index
func IsDuplicateKey(err error) bool {
	return errors.Is(err, driver.ErrDuplicateKey)
}

// IsValidationFailed returns true if the error is a validation error
func IsValidationFailed(err error) bool {
	if errors.Is(err, ErrValidationFailed) {
		return true
	}
	return validation.IsValidationError(err)
}

// ValidationErrors extracts the per-field messages of a validation failure
func ValidationErrors(err error) (*validation.ValidationErrors, bool) {
	var verrs *validation.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs, true
	}
	return nil, false
}
