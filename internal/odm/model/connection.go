// Package model binds compiled classes to driver collections and implements
// the document operations: create, save, query, update, delete, populate and
// discriminators.
package model

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/conduit-lang/docmodel/internal/metrics"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/hooks"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
	"github.com/conduit-lang/docmodel/internal/odm/validation"
)

// Connection owns a driver and the models bound to it. It is safe for
// concurrent use.
type Connection struct {
	driver    driver.Driver
	logger    *zap.Logger
	metrics   *metrics.Metrics
	registry  *schema.Registry
	validator *validation.Engine
	hooks     *hooks.Executor
	now       func() time.Time
	newID     func() string

	mu     sync.Mutex
	models map[string]*Model
	closed bool
}

// Option configures a Connection
type Option func(*Connection)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Connection) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records operation metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Connection) { c.metrics = m }
}

// WithRegistry sets the registry used to resolve references and
// discriminators. The default is schema.Default.
func WithRegistry(r *schema.Registry) Option {
	return func(c *Connection) {
		if r != nil {
			c.registry = r
		}
	}
}

// WithClock overrides the time source of timestamps
func WithClock(now func() time.Time) Option {
	return func(c *Connection) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIDGenerator overrides the identifier generator
func WithIDGenerator(fn func() string) Option {
	return func(c *Connection) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// NewConnection wraps a connected driver
func NewConnection(drv driver.Driver, opts ...Option) *Connection {
	c := &Connection{
		driver:    drv,
		logger:    zap.NewNop(),
		registry:  schema.Default,
		validator: validation.NewEngine(),
		now:       time.Now,
		newID:     uuid.NewString,
		models:    make(map[string]*Model),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.hooks = hooks.NewExecutor(c.logger.Named("hooks"))
	return c
}

// Connect connects drv and wraps it in a Connection
func Connect(ctx context.Context, drv driver.Driver, opts ...Option) (*Connection, error) {
	if err := drv.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect driver: %w", err)
	}
	return NewConnection(drv, opts...), nil
}

// Registry returns the class registry of the connection
func (c *Connection) Registry() *schema.Registry {
	return c.registry
}

// Logger returns the connection logger
func (c *Connection) Logger() *zap.Logger {
	return c.logger
}

// Model binds desc to its collection. Indexes are ensured the first time a
// class is bound; later calls return the cached model.
func (c *Connection) Model(ctx context.Context, desc *schema.Description) (*Model, error) {
	if desc == nil {
		return nil, fmt.Errorf("cannot bind a nil description")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if m, ok := c.models[desc.Name()]; ok {
		if m.desc != desc {
			return nil, fmt.Errorf("class %s is already bound to a different description", desc.Name())
		}
		return m, nil
	}

	m := newModel(c, desc, c.driver.Collection(desc.Collection()), nil)
	if err := m.ensureIndexes(ctx, indexModels(desc)); err != nil {
		return nil, err
	}
	c.models[desc.Name()] = m

	c.logger.Debug("model bound",
		zap.String("model", desc.Name()),
		zap.String("collection", desc.Collection()),
	)
	return m, nil
}

// ModelByName binds a registered class by name
func (c *Connection) ModelByName(ctx context.Context, name string) (*Model, error) {
	desc, ok := c.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, name)
	}
	return c.Model(ctx, desc)
}

// Models returns the names of the bound classes, sorted
func (c *Connection) Models() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.models))
	for name := range c.models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close disconnects the driver. Models bound to the connection fail afterwards.
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.models = make(map[string]*Model)
	c.mu.Unlock()

	if err := c.driver.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect driver: %w", err)
	}
	c.logger.Debug("connection closed")
	return nil
}

// indexModels converts the index declarations of a class to driver index models
func indexModels(desc *schema.Description) []driver.IndexModel {
	var out []driver.IndexModel
	for _, spec := range desc.Indexes() {
		im := driver.IndexModel{
			Name:   spec.Name,
			Unique: spec.Unique,
			Sparse: spec.Sparse,
		}
		for _, k := range spec.Keys {
			im.Keys = append(im.Keys, driver.IndexKey{Field: k.Field, Desc: k.Direction == schema.Descending})
		}
		out = append(out, im)
	}
	if text := desc.TextIndex(); text != nil {
		out = append(out, driver.IndexModel{Name: text.Name, Weights: text.WeightMap()})
	}
	return out
}
