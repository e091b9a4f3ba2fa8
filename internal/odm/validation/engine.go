// Package validation checks document values against their compiled field
// declarations before they reach a driver.
package validation

import (
	"context"
	"fmt"

	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// Target is the document view validation needs
type Target interface {
	Schema() *schema.Description
	Values() map[string]interface{}
	CastErrors() map[string]*schema.CastError
}

// Engine coordinates the validation layers
type Engine struct{}

// NewEngine creates a new validation engine
func NewEngine() *Engine {
	return &Engine{}
}

// Validate performs layered validation of a document and returns
// *ValidationErrors when any check fails
func (e *Engine) Validate(ctx context.Context, doc Target) error {
	desc := doc.Schema()
	errs := NewValidationErrors(desc.Name())
	values := doc.Values()

	// Layer 1: values that could not be cast on assignment
	for path, castErr := range doc.CastErrors() {
		errs.Add(path, fmt.Sprintf("cannot cast %v to %s", castErr.Value, castErr.Type))
	}

	for _, f := range desc.Fields() {
		if _, failed := errs.Fields[f.Name]; failed {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		// Layers 2-4: required, declarative constraints, custom validators
		for _, msg := range e.checkField(f, values[f.Name]) {
			errs.Add(f.Name, msg)
		}
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ValidateValue checks a single value for a field, e.g. in an update
func (e *Engine) ValidateValue(f *schema.Field, value interface{}) error {
	msgs := e.checkField(f, value)
	if len(msgs) == 0 {
		return nil
	}
	errs := NewValidationErrors("")
	for _, msg := range msgs {
		errs.Add(f.Name, msg)
	}
	return errs
}

func (e *Engine) checkField(f *schema.Field, value interface{}) []string {
	if isMissing(value) {
		if f.Required {
			return []string{"is required"}
		}
		return nil
	}

	var msgs []string
	validators := fieldValidators(f)
	for _, item := range elements(f, value) {
		for _, v := range validators {
			if err := v.Validate(item); err != nil {
				msgs = append(msgs, err.Error())
			}
		}
	}
	for _, custom := range f.Validators {
		if err := custom(value); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

// isMissing treats absent, nil and empty strings as missing for required checks
func isMissing(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	default:
		return false
	}
}

// elements returns the values declarative validators apply to: the value
// itself, or each element of an array field
func elements(f *schema.Field, value interface{}) []interface{} {
	if f.Type != schema.TypeArray {
		return []interface{}{value}
	}
	switch arr := value.(type) {
	case []string:
		out := make([]interface{}, len(arr))
		for i, s := range arr {
			out[i] = s
		}
		return out
	case []float64:
		out := make([]interface{}, len(arr))
		for i, n := range arr {
			out[i] = n
		}
		return out
	case []interface{}:
		return arr
	default:
		return nil
	}
}
