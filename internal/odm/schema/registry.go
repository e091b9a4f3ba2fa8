package schema

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
)

// Registry maps class names to compiled descriptions. Classes are registered during
// program initialization; after Freeze the registry is read-only and lookups take no lock.
type Registry struct {
	mu      sync.Mutex
	frozen  atomic.Bool
	classes map[string]*Description
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		classes: make(map[string]*Description),
	}
}

// Default is the process-wide registry
var Default = NewRegistry()

// Register adds a compiled class
func (r *Registry) Register(desc *Description) error {
	if desc == nil {
		return fmt.Errorf("cannot register a nil description")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen.Load() {
		return &ConfigurationError{Class: desc.Name(), Problems: []Problem{{Message: "registry is frozen"}}}
	}
	if _, exists := r.classes[desc.Name()]; exists {
		return &ConfigurationError{Class: desc.Name(), Problems: []Problem{{Message: "class is already registered"}}}
	}
	r.classes[desc.Name()] = desc
	return nil
}

// MustRegister is like Register but panics on error
func (r *Registry) MustRegister(descs ...*Description) {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Freeze ends the registration phase
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frozen.Store(true)
}

// Frozen reports whether Freeze has been called
func (r *Registry) Frozen() bool {
	return r.frozen.Load()
}

// Get retrieves a class by name
func (r *Registry) Get(name string) (*Description, bool) {
	if r.frozen.Load() {
		desc, ok := r.classes[name]
		return desc, ok
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	desc, ok := r.classes[name]
	return desc, ok
}

// MustGet retrieves a class by name and panics if it is missing
func (r *Registry) MustGet(name string) *Description {
	desc, ok := r.Get(name)
	if !ok {
		panic(fmt.Sprintf("class %s is not registered", name))
	}
	return desc
}

// Names returns the registered class names, sorted
func (r *Registry) Names() []string {
	if !r.frozen.Load() {
		r.mu.Lock()
		defer r.mu.Unlock()
	}

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered classes
func (r *Registry) Count() int {
	return len(r.Names())
}

// ClassForDocument returns the concrete class of a document. A discriminator value
// naming a registered subclass of the document's class takes precedence.
func (r *Registry) ClassForDocument(doc Accessor) (*Description, bool) {
	if doc == nil || doc.Schema() == nil {
		return nil, false
	}
	desc := doc.Schema()
	if name, ok := doc.Get(DiscriminatorKey).(string); ok && name != "" && name != desc.Name() {
		if sub, found := r.Get(name); found && sub.IsA(desc) {
			return sub, true
		}
	}
	if registered, found := r.Get(desc.Name()); found {
		return registered, true
	}
	return desc, false
}

// Register adds a class to the Default registry
func Register(desc *Description) error {
	return Default.Register(desc)
}

// Lookup retrieves a class from the Default registry
func Lookup(name string) (*Description, bool) {
	return Default.Get(name)
}
