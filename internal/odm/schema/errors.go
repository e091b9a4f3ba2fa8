package schema

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is matched by every ConfigurationError
var ErrConfiguration = errors.New("schema configuration error")

// Problem is a single invalid or conflicting directive
type Problem struct {
	Field   string
	Message string
}

// ConfigurationError is returned when a class definition cannot be compiled
type ConfigurationError struct {
	Class    string
	Problems []Problem
}

func (e *ConfigurationError) add(field, format string, args ...interface{}) {
	e.Problems = append(e.Problems, Problem{Field: field, Message: fmt.Sprintf(format, args...)})
}

func (e *ConfigurationError) hasProblems() bool {
	return len(e.Problems) > 0
}

// Error implements the error interface
func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		p := e.Problems[0]
		if p.Field == "" {
			return fmt.Sprintf("invalid class %s: %s", e.Class, p.Message)
		}
		return fmt.Sprintf("invalid class %s: field %s: %s", e.Class, p.Field, p.Message)
	}

	lines := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		if p.Field == "" {
			lines = append(lines, "  - "+p.Message)
			continue
		}
		lines = append(lines, fmt.Sprintf("  - %s: %s", p.Field, p.Message))
	}
	return fmt.Sprintf("invalid class %s: %d problems:\n%s", e.Class, len(e.Problems), strings.Join(lines, "\n"))
}

// Is lets errors.Is match ErrConfiguration
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// IsConfigurationError returns true if err is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrConfiguration)
}
