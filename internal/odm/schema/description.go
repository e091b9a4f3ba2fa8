package schema

import (
	"strings"
)

// Description is the compiled, immutable form of a class definition. It is built
// once by Definition.Compile and shared by every model and document of the class.
type Description struct {
	name       string
	collection string

	fields []*Field
	byName map[string]*Field

	virtuals      []*Virtual
	virtualByName map[string]*Virtual

	indexes []IndexSpec
	text    *TextIndex
	hooks   map[HookType][]HookFunc

	timestamps bool
	versionKey string

	base *Description
}

// Name returns the class name
func (d *Description) Name() string { return d.name }

// Collection returns the name of the backing collection
func (d *Description) Collection() string { return d.collection }

// Fields returns the stored fields in declaration order
func (d *Description) Fields() []*Field {
	out := make([]*Field, len(d.fields))
	copy(out, d.fields)
	return out
}

// Field returns the stored field with the given name
func (d *Description) Field(name string) (*Field, bool) {
	f, ok := d.byName[name]
	return f, ok
}

// HasField returns true if the class stores a field with the given name
func (d *Description) HasField(name string) bool {
	_, ok := d.byName[name]
	return ok
}

// Virtuals returns the virtual properties in declaration order
func (d *Description) Virtuals() []*Virtual {
	out := make([]*Virtual, len(d.virtuals))
	copy(out, d.virtuals)
	return out
}

// Virtual returns the virtual property with the given name
func (d *Description) Virtual(name string) (*Virtual, bool) {
	v, ok := d.virtualByName[name]
	return v, ok
}

// ResolvePath translates an alias name, or a dotted path starting with one, to the
// stored field path. Other paths are returned unchanged.
func (d *Description) ResolvePath(path string) string {
	head, rest, dotted := strings.Cut(path, ".")
	v, ok := d.virtualByName[head]
	if !ok || !v.IsAlias() {
		return path
	}
	if dotted {
		return v.AliasOf + "." + rest
	}
	return v.AliasOf
}

// Indexes returns the regular index specifications
func (d *Description) Indexes() []IndexSpec {
	out := make([]IndexSpec, len(d.indexes))
	copy(out, d.indexes)
	return out
}

// TextIndex returns the weighted text index, or nil if the class has none
func (d *Description) TextIndex() *TextIndex {
	return d.text
}

// Hooks returns the hooks registered for an event, base class hooks first
func (d *Description) Hooks(t HookType) []HookFunc {
	return d.hooks[t]
}

// Timestamps reports whether createdAt/updatedAt are maintained
func (d *Description) Timestamps() bool { return d.timestamps }

// VersionKey returns the key used for optimistic concurrency, or "" when disabled
func (d *Description) VersionKey() string { return d.versionKey }

// Base returns the class this one extends, or nil
func (d *Description) Base() *Description { return d.base }

// IsA returns true if d is other or extends it, directly or transitively
func (d *Description) IsA(other *Description) bool {
	for cur := d; cur != nil; cur = cur.base {
		if cur == other {
			return true
		}
	}
	return false
}

// HiddenFields returns the names of fields excluded from query results by default
func (d *Description) HiddenFields() []string {
	var names []string
	for _, f := range d.fields {
		if f.Hidden {
			names = append(names, f.Name)
		}
	}
	return names
}

// IsReserved returns true for keys maintained by the model layer
func (d *Description) IsReserved(key string) bool {
	switch key {
	case IDKey, DiscriminatorKey:
		return true
	}
	if d.versionKey != "" && key == d.versionKey {
		return true
	}
	return false
}
