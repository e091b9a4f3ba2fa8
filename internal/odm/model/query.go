package model

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/conduit-lang/docmodel/internal/odm/document"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/hooks"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// QueryOption configures Find
type QueryOption func(*queryOptions)

type queryOptions struct {
	sort    []string
	skip    int64
	limit   int64
	selects []string
}

// Sort orders results by fields; a leading "-" sorts descending
func Sort(fields ...string) QueryOption {
	return func(o *queryOptions) { o.sort = append(o.sort, fields...) }
}

// Skip skips the first n results
func Skip(n int64) QueryOption {
	return func(o *queryOptions) { o.skip = n }
}

// Limit returns at most n results
func Limit(n int64) QueryOption {
	return func(o *queryOptions) { o.limit = n }
}

// Select adjusts the returned fields: "+field" includes a hidden field and
// "-field" excludes a field
func Select(paths ...string) QueryOption {
	return func(o *queryOptions) { o.selects = append(o.selects, paths...) }
}

// findOptions translates query options to driver options
func (m *Model) findOptions(o queryOptions) (driver.FindOptions, error) {
	opts := driver.FindOptions{Skip: o.skip, Limit: o.limit}

	for _, s := range o.sort {
		field, desc := strings.CutPrefix(s, "-")
		field = strings.TrimPrefix(field, "+")
		if field == "" {
			return opts, fmt.Errorf("%w: empty sort field", driver.ErrBadFilter)
		}
		opts.Sort = append(opts.Sort, driver.SortField{Field: m.desc.ResolvePath(field), Desc: desc})
	}

	excluded := make(map[string]bool)
	for _, name := range m.desc.HiddenFields() {
		excluded[name] = true
	}
	for _, s := range o.selects {
		switch {
		case strings.HasPrefix(s, "-"):
			excluded[m.desc.ResolvePath(s[1:])] = true
		case strings.HasPrefix(s, "+"):
			delete(excluded, m.desc.ResolvePath(s[1:]))
		default:
			delete(excluded, m.desc.ResolvePath(s))
		}
	}
	delete(excluded, schema.IDKey)
	for _, f := range m.desc.Fields() {
		if excluded[f.Name] {
			opts.Exclude = append(opts.Exclude, f.Name)
			delete(excluded, f.Name)
		}
	}
	for name := range excluded {
		opts.Exclude = append(opts.Exclude, name)
	}
	return opts, nil
}

// Find returns the documents matching filter. Alias names in the filter are
// translated to stored names. With a $text clause results are ordered by
// relevance unless Sort is given.
func (m *Model) Find(ctx context.Context, filter driver.Filter, opts ...QueryOption) (docs []*document.Document, err error) {
	defer m.observe(hooks.OpFind, time.Now(), &err)

	var o queryOptions
	for _, opt := range opts {
		opt(&o)
	}
	findOpts, err := m.findOptions(o)
	if err != nil {
		return nil, err
	}

	results, err := m.coll.Find(ctx, m.scope(m.translateFilter(filter)), findOpts)
	if err != nil {
		return nil, err
	}

	hctx := hooks.NewContext(ctx, hooks.OpFind, m.desc)
	docs = make([]*document.Document, 0, len(results))
	for _, r := range results {
		doc := m.hydrate(r.Record, r.Score)
		if err := m.conn.hooks.Run(hctx, hooks.OpFind, schema.PostInit, doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	m.conn.metrics.RecordDocuments(m.desc.Name(), len(docs))
	return docs, nil
}

// FindOne returns the first document matching filter
func (m *Model) FindOne(ctx context.Context, filter driver.Filter, opts ...QueryOption) (*document.Document, error) {
	docs, err := m.Find(ctx, filter, append(opts, Limit(1))...)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, m.desc.Name())
	}
	return docs[0], nil
}

// FindByID returns the document with the given identifier
func (m *Model) FindByID(ctx context.Context, id string, opts ...QueryOption) (*document.Document, error) {
	doc, err := m.FindOne(ctx, driver.Filter{schema.IDKey: id}, opts...)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, m.desc.Name(), id)
		}
		return nil, err
	}
	return doc, nil
}

// Count returns the number of documents matching filter
func (m *Model) Count(ctx context.Context, filter driver.Filter) (int64, error) {
	return m.coll.Count(ctx, m.scope(m.translateFilter(filter)))
}

// DeleteByID removes the document with the given identifier without running
// document hooks
func (m *Model) DeleteByID(ctx context.Context, id string) error {
	n, err := m.DeleteMany(ctx, driver.Filter{schema.IDKey: id})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, m.desc.Name(), id)
	}
	return nil
}

// DeleteMany removes every document matching filter and returns the count
func (m *Model) DeleteMany(ctx context.Context, filter driver.Filter) (n int64, err error) {
	defer m.observe(hooks.OpDelete, time.Now(), &err)
	return m.coll.DeleteMany(ctx, m.scope(m.translateFilter(filter)))
}

// hydrate builds a persisted document of the record's concrete class
func (m *Model) hydrate(record driver.Record, score float64) *document.Document {
	doc := document.Hydrate(m.desc, record, score)
	if cls := m.concreteClass(doc); cls != m.desc {
		doc = document.Hydrate(cls, record, score)
	}
	return doc
}

// concreteClass resolves the class named by a document's discriminator
func (m *Model) concreteClass(doc *document.Document) *schema.Description {
	name, _ := doc.Get(schema.DiscriminatorKey).(string)
	if name == "" || name == m.desc.Name() {
		return m.desc
	}
	m.mu.RLock()
	sub, ok := m.subclasses[name]
	m.mu.RUnlock()
	if ok {
		return sub
	}
	if cls, found := m.conn.registry.ClassForDocument(doc); found && cls.IsA(m.desc) {
		return cls
	}
	return m.desc
}

// scope restricts a filter to the documents of a discriminator child
func (m *Model) scope(filter driver.Filter) driver.Filter {
	if m.base == nil {
		return filter
	}
	if _, taken := filter[schema.DiscriminatorKey]; taken {
		// $text is only valid at the top level
		rest := make(driver.Filter, len(filter))
		for k, v := range filter {
			if k != "$text" {
				rest[k] = v
			}
		}
		out := driver.Filter{"$and": []interface{}{
			rest,
			driver.Filter{schema.DiscriminatorKey: m.desc.Name()},
		}}
		if text, ok := filter["$text"]; ok {
			out["$text"] = text
		}
		return out
	}
	out := make(driver.Filter, len(filter)+1)
	for k, v := range filter {
		out[k] = v
	}
	out[schema.DiscriminatorKey] = m.desc.Name()
	return out
}

// translateFilter rewrites alias names to stored names, recursing into
// logical operators. $text and other operator clauses pass through untouched.
func (m *Model) translateFilter(filter driver.Filter) driver.Filter {
	if filter == nil {
		return driver.Filter{}
	}
	out := make(driver.Filter, len(filter))
	for k, v := range filter {
		switch {
		case k == "$and" || k == "$or" || k == "$nor":
			out[k] = m.translateClauses(v)
		case strings.HasPrefix(k, "$"):
			out[k] = v
		default:
			out[m.desc.ResolvePath(k)] = v
		}
	}
	return out
}

func (m *Model) translateClauses(v interface{}) interface{} {
	switch clauses := v.(type) {
	case []interface{}:
		out := make([]interface{}, len(clauses))
		for i, c := range clauses {
			if f, ok := c.(map[string]interface{}); ok {
				out[i] = m.translateFilter(f)
			} else {
				out[i] = c
			}
		}
		return out
	case []map[string]interface{}:
		out := make([]interface{}, len(clauses))
		for i, c := range clauses {
			out[i] = m.translateFilter(c)
		}
		return out
	default:
		return v
	}
}
