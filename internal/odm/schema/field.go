package schema

import (
	"regexp"
)

// FieldDef is a field directive under construction. Constructors such as String and
// Number return one; its methods chain and record problems for Compile to report.
type FieldDef struct {
	field    Field
	textSet  bool
	problems []Problem
}

func newFieldDef(name string, t Type) *FieldDef {
	return &FieldDef{field: Field{Name: name, Type: t}}
}

// String declares a string field
func String(name string) *FieldDef { return newFieldDef(name, TypeString) }

// Number declares a numeric field, stored as float64
func Number(name string) *FieldDef { return newFieldDef(name, TypeNumber) }

// Boolean declares a boolean field
func Boolean(name string) *FieldDef { return newFieldDef(name, TypeBoolean) }

// Date declares a timestamp field
func Date(name string) *FieldDef { return newFieldDef(name, TypeDate) }

// ObjectID declares a field holding a document identifier
func ObjectID(name string) *FieldDef { return newFieldDef(name, TypeObjectID) }

// Mixed declares an untyped field
func Mixed(name string) *FieldDef { return newFieldDef(name, TypeMixed) }

// Map declares a string-keyed map field
func Map(name string) *FieldDef { return newFieldDef(name, TypeMap) }

// Array declares an array field with the given element type
func Array(name string, elem Type) *FieldDef {
	f := newFieldDef(name, TypeArray)
	f.field.Elem = elem
	return f
}

// StringArray declares an array of strings
func StringArray(name string) *FieldDef { return Array(name, TypeString) }

// Ref declares a reference to a document of another class
func Ref(name, class string) *FieldDef {
	f := newFieldDef(name, TypeObjectID)
	f.field.Ref = class
	return f
}

// RefArray declares an array of references to documents of another class
func RefArray(name, class string) *FieldDef {
	f := Array(name, TypeObjectID)
	f.field.Ref = class
	return f
}

// Name returns the declared field name
func (f *FieldDef) Name() string { return f.field.Name }

// Required marks the field as required
func (f *FieldDef) Required() *FieldDef {
	f.field.Required = true
	return f
}

// Default sets a static default value
func (f *FieldDef) Default(v interface{}) *FieldDef {
	f.field.Default = v
	return f
}

// DefaultFunc sets a default computed at document construction
func (f *FieldDef) DefaultFunc(fn func() interface{}) *FieldDef {
	f.field.DefaultFunc = fn
	return f
}

// Alias exposes the field under an additional virtual name
func (f *FieldDef) Alias(virtual string) *FieldDef {
	f.field.Alias = virtual
	return f
}

// Hidden excludes the field from query results unless it is selected
func (f *FieldDef) Hidden() *FieldDef {
	f.field.Hidden = true
	return f
}

// Text adds the field to the class text index with the given weight
func (f *FieldDef) Text(weight int) *FieldDef {
	f.field.TextWeight = weight
	f.textSet = true
	return f
}

// Index requests a single-field ascending index
func (f *FieldDef) Index() *FieldDef {
	f.field.Index = true
	return f
}

// Unique requests a unique single-field index
func (f *FieldDef) Unique() *FieldDef {
	f.field.Index = true
	f.field.Unique = true
	return f
}

// Sparse makes the single-field index skip documents missing the field
func (f *FieldDef) Sparse() *FieldDef {
	f.field.Sparse = true
	return f
}

// Min sets the minimum for numeric fields
func (f *FieldDef) Min(v float64) *FieldDef {
	f.field.Min = &v
	return f
}

// Max sets the maximum for numeric fields
func (f *FieldDef) Max(v float64) *FieldDef {
	f.field.Max = &v
	return f
}

// MinLength sets the minimum length of string fields
func (f *FieldDef) MinLength(n int) *FieldDef {
	f.field.MinLength = &n
	return f
}

// MaxLength sets the maximum length of string fields
func (f *FieldDef) MaxLength(n int) *FieldDef {
	f.field.MaxLength = &n
	return f
}

// Match requires string values to match a regular expression
func (f *FieldDef) Match(pattern string) *FieldDef {
	re, err := regexp.Compile(pattern)
	if err != nil {
		f.problems = append(f.problems, Problem{Field: f.field.Name, Message: "invalid match pattern: " + err.Error()})
		return f
	}
	f.field.Match = re
	return f
}

// Enum restricts string values (or array elements) to a fixed set
func (f *FieldDef) Enum(values ...string) *FieldDef {
	f.field.Enum = append([]string(nil), values...)
	return f
}

// Trim strips surrounding whitespace when the value is set
func (f *FieldDef) Trim() *FieldDef {
	f.field.Trim = true
	return f
}

// Lowercase lowercases the value when it is set
func (f *FieldDef) Lowercase() *FieldDef {
	f.field.Lowercase = true
	return f
}

// Uppercase uppercases the value when it is set
func (f *FieldDef) Uppercase() *FieldDef {
	f.field.Uppercase = true
	return f
}

// Validate adds a custom validator
func (f *FieldDef) Validate(fn ValidatorFunc) *FieldDef {
	f.field.Validators = append(f.field.Validators, fn)
	return f
}

// compile checks the directive in isolation and returns a copy of the field
func (f *FieldDef) compile() (*Field, []Problem) {
	problems := append([]Problem(nil), f.problems...)
	fld := f.field
	name := fld.Name

	if name == "" {
		problems = append(problems, Problem{Message: "field name cannot be empty"})
	}
	if name == IDKey || name == IDVirtual {
		problems = append(problems, Problem{Field: name, Message: "name is reserved"})
	}
	if f.textSet {
		if fld.TextWeight <= 0 {
			problems = append(problems, Problem{Field: name, Message: "text index weight must be positive"})
		}
		if !fld.IsText() {
			problems = append(problems, Problem{Field: name, Message: "text index requires a string or string array field"})
		}
	}
	if fld.Alias == name && name != "" {
		problems = append(problems, Problem{Field: name, Message: "field cannot alias itself"})
	}
	if fld.Min != nil && fld.Max != nil && *fld.Min > *fld.Max {
		problems = append(problems, Problem{Field: name, Message: "min is greater than max"})
	}
	if fld.MinLength != nil && fld.MaxLength != nil && *fld.MinLength > *fld.MaxLength {
		problems = append(problems, Problem{Field: name, Message: "minlength is greater than maxlength"})
	}
	if (fld.Min != nil || fld.Max != nil) && fld.Type != TypeNumber {
		problems = append(problems, Problem{Field: name, Message: "min/max require a number field"})
	}
	if fld.Enum != nil || fld.MinLength != nil || fld.MaxLength != nil || fld.Match != nil {
		if !fld.IsText() {
			problems = append(problems, Problem{Field: name, Message: "string validators require a string field"})
		}
	}

	fld.Enum = append([]string(nil), fld.Enum...)
	fld.Validators = append([]ValidatorFunc(nil), fld.Validators...)
	return &fld, problems
}
