package schema

import (
	"fmt"
	"strings"
)

// IndexDef is a compound index directive
type IndexDef struct {
	spec IndexSpec
}

// Asc returns an ascending index key
func Asc(field string) IndexKey { return IndexKey{Field: field, Direction: Ascending} }

// Desc returns a descending index key
func Desc(field string) IndexKey { return IndexKey{Field: field, Direction: Descending} }

// IndexOn declares an index over one or more keys
func IndexOn(keys ...IndexKey) *IndexDef {
	return &IndexDef{spec: IndexSpec{Keys: append([]IndexKey(nil), keys...)}}
}

// Unique makes the index unique
func (i *IndexDef) Unique() *IndexDef {
	i.spec.Unique = true
	return i
}

// Sparse makes the index skip documents missing the indexed fields
func (i *IndexDef) Sparse() *IndexDef {
	i.spec.Sparse = true
	return i
}

// Named overrides the generated index name
func (i *IndexDef) Named(name string) *IndexDef {
	i.spec.Name = name
	return i
}

type virtualDef struct {
	name string
	get  GetterFunc
	set  SetterFunc
}

type hookDef struct {
	t  HookType
	fn HookFunc
}

// Definition collects the directives of one document class
type Definition struct {
	name        string
	collection  string
	fields      []*FieldDef
	virtuals    []virtualDef
	indexes     []*IndexDef
	textWeights map[string]int
	textName    string
	hooks       []hookDef
	timestamps  bool
	versionKey  *string
	noIDVirtual bool
	parent      *Description
}

// Define starts a class definition
func Define(name string) *Definition {
	return &Definition{name: name}
}

// Collection overrides the collection name derived from the class name
func (d *Definition) Collection(name string) *Definition {
	d.collection = name
	return d
}

// Fields adds field directives
func (d *Definition) Fields(fields ...*FieldDef) *Definition {
	d.fields = append(d.fields, fields...)
	return d
}

// Virtual adds a computed property. set may be nil for read-only virtuals.
func (d *Definition) Virtual(name string, get GetterFunc, set SetterFunc) *Definition {
	d.virtuals = append(d.virtuals, virtualDef{name: name, get: get, set: set})
	return d
}

// Index adds a compound index
func (d *Definition) Index(idx *IndexDef) *Definition {
	d.indexes = append(d.indexes, idx)
	return d
}

// TextIndex declares text index weights at class level. Fields may also declare
// their weight with FieldDef.Text; both forms feed the same index.
func (d *Definition) TextIndex(weights map[string]int) *Definition {
	if d.textWeights == nil {
		d.textWeights = make(map[string]int, len(weights))
	}
	for k, v := range weights {
		d.textWeights[k] = v
	}
	return d
}

// TextIndexName overrides the generated text index name
func (d *Definition) TextIndexName(name string) *Definition {
	d.textName = name
	return d
}

// Pre registers a hook that runs before an event
func (d *Definition) Pre(t HookType, fn HookFunc) *Definition {
	d.hooks = append(d.hooks, hookDef{t: t, fn: fn})
	return d
}

// Post registers a hook that runs after an event
func (d *Definition) Post(t HookType, fn HookFunc) *Definition {
	d.hooks = append(d.hooks, hookDef{t: t, fn: fn})
	return d
}

// Timestamps maintains createdAt and updatedAt fields
func (d *Definition) Timestamps() *Definition {
	d.timestamps = true
	return d
}

// VersionKey sets the optimistic concurrency key. An empty key disables versioning.
func (d *Definition) VersionKey(key string) *Definition {
	d.versionKey = &key
	return d
}

// NoIDVirtual removes the default id virtual
func (d *Definition) NoIDVirtual() *Definition {
	d.noIDVirtual = true
	return d
}

// Extends inherits fields, virtuals, indexes, text weights and hooks from a
// compiled parent class. Fields redeclared here replace the inherited ones.
func (d *Definition) Extends(parent *Description) *Definition {
	d.parent = parent
	return d
}

// MustCompile is like Compile but panics on error. It is meant for package-level
// class declarations.
func (d *Definition) MustCompile() *Description {
	desc, err := d.Compile()
	if err != nil {
		panic(err)
	}
	return desc
}

// Compile validates the definition and builds its Description
func (d *Definition) Compile() (*Description, error) {
	cerr := &ConfigurationError{Class: d.name}
	if strings.TrimSpace(d.name) == "" {
		cerr.add("", "class name cannot be empty")
	}

	desc := &Description{
		name:          d.name,
		collection:    d.collection,
		byName:        make(map[string]*Field),
		virtualByName: make(map[string]*Virtual),
		hooks:         make(map[HookType][]HookFunc),
		versionKey:    DefaultVersionKey,
		timestamps:    d.timestamps,
		base:          d.parent,
	}

	inheritedVirtuals := make(map[string]*Virtual)
	if p := d.parent; p != nil {
		for _, f := range p.fields {
			desc.fields = append(desc.fields, f)
			desc.byName[f.Name] = f
		}
		for _, v := range p.virtuals {
			if !v.IsAlias() && v.Name != IDVirtual {
				inheritedVirtuals[v.Name] = v
			}
		}
		for t, fns := range p.hooks {
			desc.hooks[t] = append([]HookFunc(nil), fns...)
		}
		desc.versionKey = p.versionKey
		desc.timestamps = desc.timestamps || p.timestamps
	}
	if desc.collection == "" {
		desc.collection = defaultCollection(d.name)
	}
	if d.versionKey != nil {
		desc.versionKey = *d.versionKey
	}

	d.compileFields(desc, cerr)
	if desc.timestamps {
		for _, key := range []string{CreatedAtKey, UpdatedAtKey} {
			if !desc.HasField(key) {
				f := &Field{Name: key, Type: TypeDate}
				desc.fields = append(desc.fields, f)
				desc.byName[key] = f
			}
		}
	}

	d.compileVirtuals(desc, inheritedVirtuals, cerr)
	d.compileTextIndex(desc, cerr)
	d.compileIndexes(desc, cerr)

	for _, h := range d.hooks {
		if h.fn == nil {
			cerr.add("", "nil %s hook", h.t)
			continue
		}
		desc.hooks[h.t] = append(desc.hooks[h.t], h.fn)
	}

	if cerr.hasProblems() {
		return nil, cerr
	}
	return desc, nil
}

func (d *Definition) compileFields(desc *Description, cerr *ConfigurationError) {
	own := make(map[string]bool, len(d.fields))
	for _, fd := range d.fields {
		if fd == nil {
			cerr.add("", "nil field directive")
			continue
		}
		field, problems := fd.compile()
		cerr.Problems = append(cerr.Problems, problems...)
		if field.Name == "" {
			continue
		}
		if field.Name == DiscriminatorKey || field.Name == desc.versionKey {
			cerr.add(field.Name, "name is reserved")
			continue
		}
		if own[field.Name] {
			cerr.add(field.Name, "duplicate field name")
			continue
		}
		own[field.Name] = true

		if _, inherited := desc.byName[field.Name]; inherited {
			for i, f := range desc.fields {
				if f.Name == field.Name {
					desc.fields[i] = field
				}
			}
		} else {
			desc.fields = append(desc.fields, field)
		}
		desc.byName[field.Name] = field
	}
}

func (d *Definition) compileVirtuals(desc *Description, inherited map[string]*Virtual, cerr *ConfigurationError) {
	aliasOwner := make(map[string]string)
	for _, f := range desc.fields {
		if f.Alias == "" {
			continue
		}
		if f.Alias == IDKey || f.Alias == IDVirtual {
			cerr.add(f.Name, "alias %s is reserved", f.Alias)
			continue
		}
		if desc.HasField(f.Alias) {
			cerr.add(f.Name, "alias %s conflicts with an existing field", f.Alias)
			continue
		}
		if owner, taken := aliasOwner[f.Alias]; taken {
			cerr.add(f.Name, "alias %s is already declared by field %s", f.Alias, owner)
			continue
		}
		aliasOwner[f.Alias] = f.Name
		addVirtual(desc, aliasVirtual(f.Alias, f.Name))
	}

	own := make(map[string]bool, len(d.virtuals))
	for _, v := range d.virtuals {
		switch {
		case v.name == "":
			cerr.add("", "virtual name cannot be empty")
			continue
		case v.get == nil:
			cerr.add(v.name, "virtual requires a getter")
			continue
		case desc.HasField(v.name):
			cerr.add(v.name, "virtual conflicts with an existing field")
			continue
		case aliasOwner[v.name] != "":
			cerr.add(v.name, "virtual conflicts with the alias of field %s", aliasOwner[v.name])
			continue
		case own[v.name]:
			cerr.add(v.name, "duplicate virtual name")
			continue
		case v.name == IDVirtual && !d.noIDVirtual:
			cerr.add(v.name, "name is reserved")
			continue
		}
		own[v.name] = true
		delete(inherited, v.name)
		addVirtual(desc, &Virtual{Name: v.name, Get: v.get, Set: v.set})
	}

	if p := d.parent; p != nil {
		for _, v := range p.virtuals {
			if _, ok := inherited[v.Name]; !ok {
				continue
			}
			if desc.HasField(v.Name) || aliasOwner[v.Name] != "" {
				continue
			}
			addVirtual(desc, v)
		}
	}

	if !d.noIDVirtual {
		addVirtual(desc, &Virtual{
			Name: IDVirtual,
			Get: func(doc Accessor) interface{} {
				return doc.Get(IDKey)
			},
		})
	}
}

func (d *Definition) compileTextIndex(desc *Description, cerr *ConfigurationError) {
	weights := make(map[string]int)
	if p := d.parent; p != nil && p.text != nil {
		for _, w := range p.text.Weights {
			if field, ok := desc.byName[w.Field]; ok && !field.IsText() {
				cerr.add(w.Field, "text index requires a string or string array field")
				continue
			}
			weights[w.Field] = w.Weight
		}
	}
	for _, f := range desc.fields {
		if f.TextWeight > 0 {
			weights[f.Name] = f.TextWeight
		}
	}
	for name, w := range d.textWeights {
		field, ok := desc.byName[name]
		switch {
		case !ok:
			cerr.add(name, "text index references an unknown field")
			continue
		case w <= 0:
			cerr.add(name, "text index weight must be positive")
			continue
		case !field.IsText():
			cerr.add(name, "text index requires a string or string array field")
			continue
		case field.TextWeight > 0 && field.TextWeight != w:
			cerr.add(name, "text weight %d conflicts with field weight %d", w, field.TextWeight)
			continue
		}
		weights[name] = w
	}
	if len(weights) == 0 {
		return
	}

	text := &TextIndex{Name: d.textName}
	if text.Name == "" {
		text.Name = fmt.Sprintf(defaultTextIndexFmt, desc.collection)
	}
	for _, f := range desc.fields {
		if w, ok := weights[f.Name]; ok {
			text.Weights = append(text.Weights, WeightEntry{Field: f.Name, Weight: w})
		}
	}
	desc.text = text
}

func (d *Definition) compileIndexes(desc *Description, cerr *ConfigurationError) {
	seen := make(map[string]bool)
	add := func(spec IndexSpec) {
		if spec.Name == "" {
			spec.Name = indexName(spec.Keys)
		}
		if seen[spec.Name] {
			cerr.add("", "duplicate index %s", spec.Name)
			return
		}
		seen[spec.Name] = true
		desc.indexes = append(desc.indexes, spec)
	}

	if p := d.parent; p != nil {
		for _, spec := range p.indexes {
			if !spec.fromField {
				add(spec)
			}
		}
	}
	for _, f := range desc.fields {
		if f.Index {
			add(IndexSpec{Keys: []IndexKey{Asc(f.Name)}, Unique: f.Unique, Sparse: f.Sparse, fromField: true})
		}
	}
	for _, idx := range d.indexes {
		if idx == nil || len(idx.spec.Keys) == 0 {
			cerr.add("", "index requires at least one key")
			continue
		}
		valid := true
		for _, k := range idx.spec.Keys {
			root, _, _ := strings.Cut(k.Field, ".")
			if !desc.HasField(root) {
				cerr.add(k.Field, "index references an unknown field")
				valid = false
			}
			if k.Direction != Ascending && k.Direction != Descending {
				cerr.add(k.Field, "index direction must be 1 or -1")
				valid = false
			}
		}
		if valid {
			add(idx.spec)
		}
	}
}

func addVirtual(desc *Description, v *Virtual) {
	desc.virtuals = append(desc.virtuals, v)
	desc.virtualByName[v.Name] = v
}

// aliasVirtual builds the accessor pair mirroring a stored field
func aliasVirtual(name, target string) *Virtual {
	return &Virtual{
		Name:    name,
		AliasOf: target,
		Get: func(doc Accessor) interface{} {
			return doc.Get(target)
		},
		Set: func(doc Accessor, value interface{}) error {
			return doc.Set(target, value)
		},
	}
}

func indexName(keys []IndexKey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s_%d", k.Field, k.Direction))
	}
	return strings.Join(parts, "_")
}

// defaultCollection lowercases and pluralizes a class name ("IndexWeights" -> "indexweights")
func defaultCollection(name string) string {
	c := strings.ToLower(name)
	if c == "" || strings.HasSuffix(c, "s") {
		return c
	}
	return c + "s"
}
