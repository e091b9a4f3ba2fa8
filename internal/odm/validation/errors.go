package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationErrors contains every validation failure of a document, by field
type ValidationErrors struct {
	Class  string              `json:"class,omitempty"`
	Fields map[string][]string `json:"fields"`
}

// NewValidationErrors creates a new ValidationErrors instance
func NewValidationErrors(class string) *ValidationErrors {
	return &ValidationErrors{
		Class:  class,
		Fields: make(map[string][]string),
	}
}

// Add adds a validation error for a specific field
func (ve *ValidationErrors) Add(field, message string) {
	if ve.Fields == nil {
		ve.Fields = make(map[string][]string)
	}
	ve.Fields[field] = append(ve.Fields[field], message)
}

// AddFieldError adds a FieldError to the validation errors
func (ve *ValidationErrors) AddFieldError(err FieldError) {
	ve.Add(err.Field, err.Message)
}

// HasErrors returns true if there are any validation errors
func (ve *ValidationErrors) HasErrors() bool {
	return len(ve.Fields) > 0
}

// Count returns the total number of validation errors across all fields
func (ve *ValidationErrors) Count() int {
	count := 0
	for _, messages := range ve.Fields {
		count += len(messages)
	}
	return count
}

// FieldNames returns the failing fields, sorted
func (ve *ValidationErrors) FieldNames() []string {
	names := make([]string, 0, len(ve.Fields))
	for name := range ve.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Error implements the error interface
func (ve *ValidationErrors) Error() string {
	prefix := "validation failed"
	if ve.Class != "" {
		prefix = fmt.Sprintf("%s validation failed", ve.Class)
	}
	if !ve.HasErrors() {
		return prefix
	}

	var messages []string
	for _, field := range ve.FieldNames() {
		for _, msg := range ve.Fields[field] {
			messages = append(messages, fmt.Sprintf("  - %s: %s", field, msg))
		}
	}

	if len(messages) == 1 {
		return fmt.Sprintf("%s: %s", prefix, strings.TrimPrefix(messages[0], "  - "))
	}

	return fmt.Sprintf("%s:\n%s", prefix, strings.Join(messages, "\n"))
}

// MarshalJSON implements json.Marshaler for custom JSON serialization
func (ve *ValidationErrors) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Error  string              `json:"error"`
		Class  string              `json:"class,omitempty"`
		Fields map[string][]string `json:"fields"`
	}{
		Error:  "validation_failed",
		Class:  ve.Class,
		Fields: ve.Fields,
	})
}

// FieldError represents a validation error on a specific field
type FieldError struct {
	Field   string
	Message string
}

// Error implements the error interface
func (fe FieldError) Error() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
}

// NewFieldError creates a new FieldError
func NewFieldError(field, message string) FieldError {
	return FieldError{
		Field:   field,
		Message: message,
	}
}

// IsValidationError returns true if err is or wraps ValidationErrors
func IsValidationError(err error) bool {
	var ve *ValidationErrors
	return errors.As(err, &ve)
}
