// Package schema turns document class definitions into immutable descriptions
// that the model layer and the storage drivers consume. It covers field types,
// validators, alias and computed virtuals, weighted text indexes and lifecycle hooks.
package schema

import (
	"context"
	"fmt"
	"regexp"
)

// Type represents the storage type of a document field
type Type int

const (
	TypeString Type = iota
	TypeNumber
	TypeBoolean
	TypeDate
	TypeObjectID
	TypeMixed
	TypeArray
	TypeMap
)

// String returns the string representation of the type
func (t Type) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeNumber:
		return "number"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeObjectID:
		return "objectid"
	case TypeMixed:
		return "mixed"
	case TypeArray:
		return "array"
	case TypeMap:
		return "map"
	default:
		return "unknown"
	}
}

// ParseType converts a string to a Type
func ParseType(s string) (Type, error) {
	switch s {
	case "string":
		return TypeString, nil
	case "number":
		return TypeNumber, nil
	case "boolean":
		return TypeBoolean, nil
	case "date":
		return TypeDate, nil
	case "objectid":
		return TypeObjectID, nil
	case "mixed":
		return TypeMixed, nil
	case "array":
		return TypeArray, nil
	case "map":
		return TypeMap, nil
	default:
		return 0, fmt.Errorf("unknown field type: %s", s)
	}
}

// ValidatorFunc is a custom field validator. A non-nil error fails validation
// with the error text as the message.
type ValidatorFunc func(value interface{}) error

// Field is a compiled document field
type Field struct {
	Name string
	Type Type
	Elem Type   // element type for arrays
	Ref  string // referenced class for ObjectID fields

	Required    bool
	Default     interface{}
	DefaultFunc func() interface{}

	// Alias is the name of the virtual property mirroring this field
	Alias string
	// Hidden fields are left out of query results unless selected explicitly
	Hidden bool

	TextWeight int
	Index      bool
	Unique     bool
	Sparse     bool

	Min       *float64
	Max       *float64
	MinLength *int
	MaxLength *int
	Match     *regexp.Regexp
	Enum      []string

	Trim      bool
	Lowercase bool
	Uppercase bool

	Validators []ValidatorFunc
}

// IsText returns true if the field can take part in a text index
func (f *Field) IsText() bool {
	return f.Type == TypeString || (f.Type == TypeArray && f.Elem == TypeString)
}

// TypeName returns a readable type, including the element type of arrays
func (f *Field) TypeName() string {
	if f.Type == TypeArray {
		return fmt.Sprintf("array<%s>", f.Elem)
	}
	if f.Ref != "" {
		return fmt.Sprintf("ref<%s>", f.Ref)
	}
	return f.Type.String()
}

// DefaultValue returns the field default, calling DefaultFunc when present
func (f *Field) DefaultValue() (interface{}, bool) {
	if f.DefaultFunc != nil {
		return f.DefaultFunc(), true
	}
	if f.Default != nil {
		return f.Default, true
	}
	return nil, false
}

// Accessor is the view of a document instance handed to virtual accessors and hooks
type Accessor interface {
	Get(path string) interface{}
	Set(path string, value interface{}) error
	Schema() *Description
}

// GetterFunc computes a virtual value
type GetterFunc func(doc Accessor) interface{}

// SetterFunc writes a virtual value through to stored fields
type SetterFunc func(doc Accessor, value interface{}) error

// Virtual is a property that is computed rather than stored
type Virtual struct {
	Name string
	// AliasOf is set for alias virtuals and names the stored field
	AliasOf string
	Get     GetterFunc
	Set     SetterFunc
}

// IsAlias returns true if the virtual mirrors a stored field
func (v *Virtual) IsAlias() bool {
	return v.AliasOf != ""
}

// Direction is an index key order
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// IndexKey is a single key of an index
type IndexKey struct {
	Field     string
	Direction Direction
}

// IndexSpec describes a regular (non-text) index
type IndexSpec struct {
	Name   string
	Keys   []IndexKey
	Unique bool
	Sparse bool

	// field indexes are rebuilt from the field directive when inherited
	fromField bool
}

// WeightEntry is the weight a field contributes to text relevance scores
type WeightEntry struct {
	Field  string
	Weight int
}

// TextIndex is the weighted composite text index of a class
type TextIndex struct {
	Name    string
	Weights []WeightEntry
}

// Weight returns the weight of a field, or 0 if it is not indexed
func (t *TextIndex) Weight(field string) int {
	for _, w := range t.Weights {
		if w.Field == field {
			return w.Weight
		}
	}
	return 0
}

// WeightMap returns the weights keyed by field
func (t *TextIndex) WeightMap() map[string]int {
	m := make(map[string]int, len(t.Weights))
	for _, w := range t.Weights {
		m[w.Field] = w.Weight
	}
	return m
}

// HookType represents a document lifecycle event
type HookType int

const (
	PreValidate HookType = iota
	PostValidate
	PreSave
	PostSave
	PreDelete
	PostDelete
	PostInit
)

// String returns the string representation of the hook type
func (h HookType) String() string {
	switch h {
	case PreValidate:
		return "pre_validate"
	case PostValidate:
		return "post_validate"
	case PreSave:
		return "pre_save"
	case PostSave:
		return "post_save"
	case PreDelete:
		return "pre_delete"
	case PostDelete:
		return "post_delete"
	case PostInit:
		return "post_init"
	default:
		return "unknown"
	}
}

// HookFunc runs on a document lifecycle event
type HookFunc func(ctx context.Context, doc Accessor) error

// Reserved keys written by the model layer
const (
	IDKey               = "_id"
	IDVirtual           = "id"
	DefaultVersionKey   = "__v"
	DiscriminatorKey    = "__t"
	CreatedAtKey        = "createdAt"
	UpdatedAtKey        = "updatedAt"
	defaultTextIndexFmt = "%s_text"
)
