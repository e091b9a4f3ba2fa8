package validation

import (
	"fmt"
	"net/mail"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// Validator defines the interface for field validators
type Validator interface {
	Validate(value interface{}) error
}

// RangeValidator checks numbers, and dates against unix milliseconds
type RangeValidator struct {
	Min *float64
	Max *float64
}

// Validate implements the Validator interface
func (v *RangeValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	n, ok := numeric(value)
	if !ok {
		return fmt.Errorf("expected numeric value")
	}
	if v.Min != nil && n < *v.Min {
		return fmt.Errorf("must be at least %v", *v.Min)
	}
	if v.Max != nil && n > *v.Max {
		return fmt.Errorf("must be at most %v", *v.Max)
	}
	return nil
}

func numeric(value interface{}) (float64, bool) {
	if t, ok := value.(time.Time); ok {
		return float64(t.UnixMilli()), true
	}
	return schema.ToFloat64(value)
}

// LengthValidator checks string length in runes
type LengthValidator struct {
	MinLength *int
	MaxLength *int
}

// Validate implements the Validator interface
func (v *LengthValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("expected string value")
	}
	n := utf8.RuneCountInString(s)
	if v.MinLength != nil && n < *v.MinLength {
		return fmt.Errorf("must be at least %d characters", *v.MinLength)
	}
	if v.MaxLength != nil && n > *v.MaxLength {
		return fmt.Errorf("must be at most %d characters", *v.MaxLength)
	}
	return nil
}

// PatternValidator validates string values against a regex pattern
type PatternValidator struct {
	Pattern *regexp.Regexp
}

// Validate implements the Validator interface
func (v *PatternValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}

	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("pattern validation requires string value")
	}

	if !v.Pattern.MatchString(strVal) {
		return fmt.Errorf("does not match required pattern %s", v.Pattern)
	}

	return nil
}

// EnumValidator restricts strings to a fixed set
type EnumValidator struct {
	Values []string
}

// Validate implements the Validator interface
func (v *EnumValidator) Validate(value interface{}) error {
	if value == nil {
		return nil
	}
	s, ok := value.(string)
	if !ok {
		return fmt.Errorf("enum validation requires string value")
	}
	for _, allowed := range v.Values {
		if s == allowed {
			return nil
		}
	}
	return fmt.Errorf("%q is not one of [%s]", s, strings.Join(v.Values, ", "))
}

// Email is a field validator for email addresses
func Email(value interface{}) error {
	if value == nil {
		return nil
	}

	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("email validation requires string value")
	}

	if strings.TrimSpace(strVal) == "" {
		return fmt.Errorf("email address cannot be empty")
	}

	if _, err := mail.ParseAddress(strVal); err != nil {
		return fmt.Errorf("must be a valid email address")
	}

	return nil
}

// URL is a field validator for absolute URLs
func URL(value interface{}) error {
	if value == nil {
		return nil
	}

	strVal, ok := value.(string)
	if !ok {
		return fmt.Errorf("URL validation requires string value")
	}

	parsedURL, err := url.Parse(strVal)
	if err != nil {
		return fmt.Errorf("must be a valid URL")
	}
	if parsedURL.Scheme == "" {
		return fmt.Errorf("URL must include a scheme (http, https, etc.)")
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("URL must include a host")
	}

	return nil
}

// fieldValidators builds the declarative validators of a field, in check order
func fieldValidators(f *schema.Field) []Validator {
	var out []Validator
	if f.Min != nil || f.Max != nil {
		out = append(out, &RangeValidator{Min: f.Min, Max: f.Max})
	}
	if f.MinLength != nil || f.MaxLength != nil {
		out = append(out, &LengthValidator{MinLength: f.MinLength, MaxLength: f.MaxLength})
	}
	if f.Match != nil {
		out = append(out, &PatternValidator{Pattern: f.Match})
	}
	if len(f.Enum) > 0 {
		out = append(out, &EnumValidator{Values: f.Enum})
	}
	return out
}
