// Package driver defines the contract between the mapping layer and a document
// store. The model layer only talks to these interfaces; persistence, query
// evaluation, index maintenance and text scoring are the driver's job.
package driver

import (
	"context"
	"errors"
)

// Common driver errors
var (
	// ErrDuplicateKey is returned when a write violates a unique index
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrNoTextIndex is returned for a $text query on a collection without a text index
	ErrNoTextIndex = errors.New("text index required for $text query")

	// ErrNotConnected is returned when a driver is used before Connect or after Disconnect
	ErrNotConnected = errors.New("driver is not connected")

	// ErrBadFilter is returned for malformed filters and updates
	ErrBadFilter = errors.New("invalid filter")
)

// Record is a stored document. The identifier lives under IDKey.
type Record = map[string]interface{}

// Filter is a query predicate in document-store syntax, e.g.
//
//	Filter{"age": Filter{"$gte": 18}, "$text": Filter{"$search": "mongoose -js"}}
type Filter = map[string]interface{}

// IDKey is the key holding a record's identifier
const IDKey = "_id"

// Result is a record returned by Find together with its text relevance score,
// which is zero unless the filter contains $text
type Result struct {
	Record Record
	Score  float64
}

// SortField orders results by a field
type SortField struct {
	Field string
	Desc  bool
}

// FindOptions controls result ordering, paging and projection
type FindOptions struct {
	Sort  []SortField
	Skip  int64
	Limit int64
	// Exclude lists fields removed from returned records
	Exclude []string
}

// Update is a partial modification of a record
type Update struct {
	Set   map[string]interface{}
	Unset []string
	Inc   map[string]float64
}

// IsEmpty returns true if the update changes nothing
func (u Update) IsEmpty() bool {
	return len(u.Set) == 0 && len(u.Unset) == 0 && len(u.Inc) == 0
}

// IndexKey is one key of a regular index
type IndexKey struct {
	Field string
	Desc  bool
}

// IndexModel describes an index to maintain. A model with Weights is a text
// index; otherwise Keys describe a regular index.
type IndexModel struct {
	Name    string
	Keys    []IndexKey
	Unique  bool
	Sparse  bool
	Weights map[string]int
}

// IsText returns true for weighted text indexes
func (m IndexModel) IsText() bool {
	return len(m.Weights) > 0
}

// Collection is a named set of records
type Collection interface {
	Name() string
	EnsureIndexes(ctx context.Context, models []IndexModel) error
	InsertOne(ctx context.Context, record Record) error
	Find(ctx context.Context, filter Filter, opts FindOptions) ([]Result, error)
	// UpdateOne applies update to the first record matching filter and reports
	// how many records matched (0 or 1)
	UpdateOne(ctx context.Context, filter Filter, update Update) (int64, error)
	DeleteMany(ctx context.Context, filter Filter) (int64, error)
	Count(ctx context.Context, filter Filter) (int64, error)
	Drop(ctx context.Context) error
}

// Driver is a connection to a document store
type Driver interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Collection(name string) Collection
}
