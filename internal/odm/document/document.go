// Package document implements document instances: the in-memory form of a
// stored record bound to its schema description. Field access goes through
// aliases and virtual properties, values are cast to their declared types on
// write, and modified paths are tracked for partial saves.
//
// A Document is not safe for concurrent use.
package document

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

var (
	// ErrUnknownPath is returned when setting a path the schema does not declare
	ErrUnknownPath = errors.New("path is not declared in the schema")

	// ErrReadOnlyVirtual is returned when setting a virtual without a setter
	ErrReadOnlyVirtual = errors.New("virtual property is read-only")
)

// Document is an instance of a compiled class
type Document struct {
	desc       *schema.Description
	values     map[string]interface{}
	isNew      bool
	track      *tracker
	castErrors map[string]*schema.CastError
	score      float64
	populated  map[string]interface{}
}

// New creates an unsaved document with defaults applied
func New(desc *schema.Description) *Document {
	d := &Document{
		desc:   desc,
		values: make(map[string]interface{}),
		isNew:  true,
		track:  newTracker(nil),
	}
	for _, f := range desc.Fields() {
		if v, ok := f.DefaultValue(); ok {
			_ = d.setField(f, f.Name, v)
		}
	}
	return d
}

// Hydrate builds a persisted document from a stored record. Known fields are
// cast to their declared types; values that fail to cast are kept as stored.
func Hydrate(desc *schema.Description, record map[string]interface{}, score float64) *Document {
	values := make(map[string]interface{}, len(record))
	for k, v := range record {
		if f, ok := desc.Field(k); ok {
			if cast, err := f.Cast(v); err == nil {
				v = cast
			}
		}
		values[k] = v
	}
	return &Document{
		desc:   desc,
		values: values,
		track:  newTracker(values),
		score:  score,
	}
}

// Schema returns the document's class description
func (d *Document) Schema() *schema.Description { return d.desc }

// ID returns the document identifier, or "" before one is assigned
func (d *Document) ID() string {
	id, _ := d.values[schema.IDKey].(string)
	return id
}

// IsNew reports whether the document has not been persisted yet
func (d *Document) IsNew() bool { return d.isNew }

// TextScore returns the relevance score of a text search result
func (d *Document) TextScore() float64 { return d.score }

// Get returns the value at path. Aliases and virtuals resolve to their
// accessors; populated references return the loaded document.
func (d *Document) Get(path string) interface{} {
	if p, ok := d.populated[path]; ok {
		return p
	}
	if v, ok := d.desc.Virtual(path); ok {
		return v.Get(d)
	}
	path = d.desc.ResolvePath(path)
	v, _ := lookup(d.values, path)
	return v
}

// Set writes value at path, casting it to the declared field type. Cast
// failures are also recorded and reported by validation.
func (d *Document) Set(path string, value interface{}) error {
	if v, ok := d.desc.Virtual(path); ok {
		if v.Set == nil {
			return fmt.Errorf("%w: %s", ErrReadOnlyVirtual, path)
		}
		return v.Set(d, value)
	}

	path = d.desc.ResolvePath(path)
	head, rest, nested := strings.Cut(path, ".")

	if d.desc.IsReserved(head) {
		d.setRaw(path, value)
		return nil
	}

	f, ok := d.desc.Field(head)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPath, path)
	}
	if nested {
		if f.Type != schema.TypeMap && f.Type != schema.TypeMixed {
			return fmt.Errorf("%w: %s", ErrUnknownPath, path)
		}
		parent, ok := d.values[head].(map[string]interface{})
		if !ok {
			if d.values[head] != nil {
				return fmt.Errorf("%w: %s is not a document", ErrUnknownPath, head)
			}
			parent = make(map[string]interface{})
			d.values[head] = parent
		}
		if !setPath(parent, rest, value) {
			return fmt.Errorf("%w: %s", ErrUnknownPath, path)
		}
		d.track.mark(head)
		return nil
	}
	return d.setField(f, path, value)
}

func (d *Document) setField(f *schema.Field, path string, value interface{}) error {
	delete(d.populated, path)
	cast, err := f.Cast(value)
	if err != nil {
		var castErr *schema.CastError
		if errors.As(err, &castErr) {
			if d.castErrors == nil {
				d.castErrors = make(map[string]*schema.CastError)
			}
			d.castErrors[path] = castErr
		}
		return err
	}
	delete(d.castErrors, path)
	d.setRaw(path, cast)
	return nil
}

func (d *Document) setRaw(path string, value interface{}) {
	if value == nil {
		unsetPath(d.values, path)
	} else if !setPath(d.values, path, value) {
		return
	}
	d.track.mark(path)
}

// CastErrors returns the values that could not be cast, keyed by path
func (d *Document) CastErrors() map[string]*schema.CastError {
	out := make(map[string]*schema.CastError, len(d.castErrors))
	for k, v := range d.castErrors {
		out[k] = v
	}
	return out
}

// IsModified reports whether path, one of its parents or children changed
// since the document was loaded or last saved
func (d *Document) IsModified(path string) bool {
	return d.track.modified(d.values, d.desc.ResolvePath(path))
}

// ModifiedPaths returns the changed top-level paths in the order they were
// first written
func (d *Document) ModifiedPaths() []string {
	changes := d.track.changes(d.values)
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Field
	}
	return out
}

// Changes returns the changed top-level paths with their old and new values
func (d *Document) Changes() []FieldChange {
	return d.track.changes(d.values)
}

// MarkPersisted records that the current state matches the store
func (d *Document) MarkPersisted() {
	d.isNew = false
	d.track = newTracker(d.values)
}

// Populated returns the document loaded for a reference path
func (d *Document) Populated(path string) (interface{}, bool) {
	v, ok := d.populated[path]
	return v, ok
}

// SetPopulated attaches a loaded *Document or []*Document to a reference path
// without changing the stored identifier
func (d *Document) SetPopulated(path string, value interface{}) {
	if d.populated == nil {
		d.populated = make(map[string]interface{})
	}
	d.populated[path] = value
}

// Values returns a copy of the stored fields
func (d *Document) Values() map[string]interface{} {
	return deepCopyMap(d.values)
}

// ObjectOption configures ToObject
type ObjectOption func(*objectOptions)

type objectOptions struct {
	virtuals bool
}

// WithVirtuals includes virtual properties, aliases and id among them
func WithVirtuals() ObjectOption {
	return func(o *objectOptions) { o.virtuals = true }
}

// ToObject converts the document to a plain map. Only stored fields are
// included unless WithVirtuals is given. Populated references are rendered
// as nested objects.
func (d *Document) ToObject(opts ...ObjectOption) map[string]interface{} {
	var o objectOptions
	for _, opt := range opts {
		opt(&o)
	}

	out := d.Values()
	for path, p := range d.populated {
		switch v := p.(type) {
		case *Document:
			out[path] = v.ToObject(opts...)
		case []*Document:
			objs := make([]interface{}, len(v))
			for i, doc := range v {
				objs[i] = doc.ToObject(opts...)
			}
			out[path] = objs
		}
	}
	if o.virtuals {
		for _, v := range d.desc.Virtuals() {
			if val := v.Get(d); val != nil {
				out[v.Name] = deepCopyValue(val)
			}
		}
	}
	return out
}

// String renders the document for logs
func (d *Document) String() string {
	keys := make([]string, 0, len(d.values))
	for k := range d.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s: %v", k, d.values[k])
	}
	return fmt.Sprintf("%s{%s}", d.desc.Name(), strings.Join(parts, ", "))
}

// IsDocument reports whether v is a document instance
func IsDocument(v interface{}) bool {
	doc, ok := v.(*Document)
	return ok && doc != nil
}

// IsDocumentArray reports whether v is a non-empty array made only of
// document instances
func IsDocumentArray(v interface{}) bool {
	switch arr := v.(type) {
	case []*Document:
		for _, doc := range arr {
			if doc == nil {
				return false
			}
		}
		return len(arr) > 0
	case []interface{}:
		for _, item := range arr {
			if !IsDocument(item) {
				return false
			}
		}
		return len(arr) > 0
	default:
		return false
	}
}

var _ schema.Accessor = (*Document)(nil)
