// Package memory is an in-process document store. Collections keep records in
// insertion order and evaluate queries with the match engine.
package memory

import (
	"context"
	"sync"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/driver/match"
)

// Driver is an in-memory driver.Driver
type Driver struct {
	mu          sync.RWMutex
	connected   bool
	collections map[string]*Collection
}

// New creates a disconnected in-memory driver
func New() *Driver {
	return &Driver{collections: make(map[string]*Collection)}
}

// Connect marks the driver as connected
func (d *Driver) Connect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = true
	return nil
}

// Disconnect marks the driver as disconnected. Stored data is kept so a
// reconnect sees it again.
func (d *Driver) Disconnect(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.connected = false
	return nil
}

func (d *Driver) isConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Collection returns the named collection, creating it on first use
func (d *Driver) Collection(name string) driver.Collection {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.collections[name]
	if !ok {
		c = &Collection{name: name, driver: d}
		d.collections[name] = c
	}
	return c
}

// Collection is an in-memory driver.Collection
type Collection struct {
	name    string
	driver  *Driver
	mu      sync.RWMutex
	records []map[string]interface{}
	indexes []driver.IndexModel
}

// Name returns the collection name
func (c *Collection) Name() string { return c.name }

// EnsureIndexes records index models, replacing any with the same name.
// Existing records are checked against new unique indexes.
func (c *Collection) EnsureIndexes(ctx context.Context, models []driver.IndexModel) error {
	if !c.driver.isConnected() {
		return driver.ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	merged := append([]driver.IndexModel(nil), c.indexes...)
	for _, model := range models {
		replaced := false
		for i := range merged {
			if merged[i].Name == model.Name {
				merged[i] = model
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, model)
		}
	}
	for i, record := range c.records {
		if err := match.CheckUnique(withoutID(record), c.records[:i], merged); err != nil {
			return err
		}
	}
	c.indexes = merged
	return nil
}

// withoutID hides the identifier so CheckUnique compares index keys only
func withoutID(record map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		if k != driver.IDKey {
			out[k] = v
		}
	}
	return out
}

// InsertOne stores a copy of record
func (c *Collection) InsertOne(ctx context.Context, record driver.Record) error {
	if !c.driver.isConnected() {
		return driver.ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := match.CheckUnique(record, c.records, c.indexes); err != nil {
		return err
	}
	c.records = append(c.records, match.Clone(record))
	return nil
}

// Find returns copies of matching records
func (c *Collection) Find(ctx context.Context, filter driver.Filter, opts driver.FindOptions) ([]driver.Result, error) {
	if !c.driver.isConnected() {
		return nil, driver.ErrNotConnected
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return match.Query(c.records, filter, opts, c.indexes)
}

// UpdateOne updates the first matching record in insertion order
func (c *Collection) UpdateOne(ctx context.Context, filter driver.Filter, update driver.Update) (int64, error) {
	if !c.driver.isConnected() {
		return 0, driver.ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	positions, _, err := match.Select(c.records, filter, c.indexes)
	if err != nil || len(positions) == 0 {
		return 0, err
	}
	i := positions[0]
	updated, err := match.ApplyUpdate(c.records[i], update)
	if err != nil {
		return 0, err
	}
	others := make([]map[string]interface{}, 0, len(c.records)-1)
	others = append(others, c.records[:i]...)
	others = append(others, c.records[i+1:]...)
	if err := match.CheckUnique(updated, others, c.indexes); err != nil {
		return 0, err
	}
	c.records[i] = updated
	return 1, nil
}

// DeleteMany removes every matching record
func (c *Collection) DeleteMany(ctx context.Context, filter driver.Filter) (int64, error) {
	if !c.driver.isConnected() {
		return 0, driver.ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	positions, _, err := match.Select(c.records, filter, c.indexes)
	if err != nil {
		return 0, err
	}
	deleted := int64(len(positions))
	hits := make(map[int]bool, len(positions))
	for _, pos := range positions {
		hits[pos] = true
	}
	if deleted == 0 {
		return 0, nil
	}
	kept := make([]map[string]interface{}, 0, len(c.records)-int(deleted))
	for i, record := range c.records {
		if !hits[i] {
			kept = append(kept, record)
		}
	}
	c.records = kept
	return deleted, nil
}

// Count returns the number of matching records
func (c *Collection) Count(ctx context.Context, filter driver.Filter) (int64, error) {
	if !c.driver.isConnected() {
		return 0, driver.ErrNotConnected
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	results, err := match.Filter(c.records, filter, c.indexes)
	if err != nil {
		return 0, err
	}
	return int64(len(results)), nil
}

// Drop removes all records and indexes
func (c *Collection) Drop(ctx context.Context) error {
	if !c.driver.isConnected() {
		return driver.ErrNotConnected
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = nil
	c.indexes = nil
	return nil
}
