package model

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmodel/internal/odm/document"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/hooks"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
	"github.com/conduit-lang/docmodel/internal/odm/validation"
)

// Model performs document operations for one class on its collection
type Model struct {
	conn *Connection
	desc *schema.Description
	coll driver.Collection

	// base is the root model for discriminator children
	base *Model

	mu         sync.RWMutex
	subclasses map[string]*schema.Description
}

func newModel(conn *Connection, desc *schema.Description, coll driver.Collection, base *Model) *Model {
	return &Model{
		conn:       conn,
		desc:       desc,
		coll:       coll,
		base:       base,
		subclasses: make(map[string]*schema.Description),
	}
}

// Schema returns the class description
func (m *Model) Schema() *schema.Description { return m.desc }

// Name returns the class name
func (m *Model) Name() string { return m.desc.Name() }

// Collection returns the backing driver collection
func (m *Model) Collection() driver.Collection { return m.coll }

// IsDiscriminator reports whether the model stores its documents in the
// collection of a base class
func (m *Model) IsDiscriminator() bool { return m.base != nil }

func (m *Model) ensureIndexes(ctx context.Context, models []driver.IndexModel) error {
	if len(models) == 0 {
		return nil
	}
	if err := m.coll.EnsureIndexes(ctx, models); err != nil {
		return fmt.Errorf("failed to ensure indexes of %s: %w", m.desc.Name(), err)
	}
	return nil
}

// New builds an unsaved document from fields. Field names may be aliases or
// virtuals. Values that cannot be cast are kept as cast errors and reported
// when the document is validated.
func (m *Model) New(fields map[string]interface{}) (*document.Document, error) {
	doc := document.New(m.desc)
	if m.base != nil {
		_ = doc.Set(schema.DiscriminatorKey, m.desc.Name())
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := doc.Set(k, fields[k]); err != nil {
			var castErr *schema.CastError
			if errors.As(err, &castErr) {
				continue
			}
			return nil, err
		}
	}
	return doc, nil
}

// Create builds, validates and inserts a document
func (m *Model) Create(ctx context.Context, fields map[string]interface{}) (*document.Document, error) {
	doc, err := m.New(fields)
	if err != nil {
		return nil, err
	}
	if err := m.Save(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate runs the validate hooks and checks the document
func (m *Model) Validate(ctx context.Context, doc *document.Document) error {
	op := hooks.OpValidate
	if hc, ok := hooks.FromContext(ctx); ok {
		op = hc.Operation()
	}
	if err := m.conn.hooks.Run(ctx, op, schema.PreValidate, doc); err != nil {
		return err
	}
	if err := m.conn.validator.Validate(ctx, doc); err != nil {
		if validation.IsValidationError(err) {
			m.conn.metrics.RecordValidationFailure(doc.Schema().Name())
			return fmt.Errorf("%w: %w", ErrValidationFailed, err)
		}
		return err
	}
	return m.conn.hooks.Run(ctx, op, schema.PostValidate, doc)
}

// Save persists doc. New documents are inserted with a generated identifier;
// persisted documents write their modified paths, guarded by the version key.
func (m *Model) Save(ctx context.Context, doc *document.Document) (err error) {
	if !doc.Schema().IsA(m.desc) {
		return fmt.Errorf("%w: %s is not a %s", ErrWrongClass, doc.Schema().Name(), m.desc.Name())
	}

	op := hooks.OpSave
	if doc.IsNew() {
		op = hooks.OpCreate
	}
	defer m.observe(op, time.Now(), &err)

	hctx := hooks.NewContext(ctx, op, doc.Schema())
	if err := m.Validate(hctx, doc); err != nil {
		return err
	}
	if err := m.conn.hooks.Run(hctx, op, schema.PreSave, doc); err != nil {
		return err
	}

	if doc.IsNew() {
		err = m.insert(ctx, doc)
	} else {
		err = m.update(ctx, doc)
	}
	if err != nil {
		return err
	}
	doc.MarkPersisted()

	return m.conn.hooks.Run(hctx, op, schema.PostSave, doc)
}

func (m *Model) insert(ctx context.Context, doc *document.Document) error {
	desc := doc.Schema()
	if (m.base != nil || desc != m.desc) && doc.Get(schema.DiscriminatorKey) == nil {
		_ = doc.Set(schema.DiscriminatorKey, desc.Name())
	}
	if doc.ID() == "" {
		_ = doc.Set(schema.IDKey, m.conn.newID())
	}
	if desc.Timestamps() {
		now := m.conn.now().UTC()
		if doc.Get(schema.CreatedAtKey) == nil {
			_ = doc.Set(schema.CreatedAtKey, now)
		}
		_ = doc.Set(schema.UpdatedAtKey, now)
	}
	if vk := desc.VersionKey(); vk != "" {
		_ = doc.Set(vk, 0.0)
	}

	return m.coll.InsertOne(ctx, doc.Values())
}

func (m *Model) update(ctx context.Context, doc *document.Document) error {
	desc := doc.Schema()
	changes := doc.Changes()
	if len(changes) == 0 {
		return nil
	}

	upd := driver.Update{Set: make(map[string]interface{})}
	for _, c := range changes {
		if c.NewValue == nil {
			upd.Unset = append(upd.Unset, c.Field)
			continue
		}
		upd.Set[c.Field] = c.NewValue
	}
	if desc.Timestamps() {
		now := m.conn.now().UTC()
		_ = doc.Set(schema.UpdatedAtKey, now)
		upd.Set[schema.UpdatedAtKey] = now
	}

	filter := driver.Filter{schema.IDKey: doc.ID()}
	vk := desc.VersionKey()
	var version float64
	if vk != "" {
		current := doc.Get(vk)
		filter[vk] = current
		version, _ = schema.ToFloat64(current)
		upd.Inc = map[string]float64{vk: 1}
	}

	n, err := m.coll.UpdateOne(ctx, filter, upd)
	if err != nil {
		return err
	}
	if n == 0 {
		exists, err := m.coll.Count(ctx, driver.Filter{schema.IDKey: doc.ID()})
		if err != nil {
			return err
		}
		if exists == 0 {
			return fmt.Errorf("%w: %s %s", ErrNotFound, desc.Name(), doc.ID())
		}
		m.conn.metrics.RecordVersionConflict(desc.Name())
		return fmt.Errorf("%w: %s %s", ErrVersionConflict, desc.Name(), doc.ID())
	}
	if vk != "" {
		_ = doc.Set(vk, version+1)
	}
	return nil
}

// Delete removes a persisted document, running its delete hooks
func (m *Model) Delete(ctx context.Context, doc *document.Document) (err error) {
	if !doc.Schema().IsA(m.desc) {
		return fmt.Errorf("%w: %s is not a %s", ErrWrongClass, doc.Schema().Name(), m.desc.Name())
	}
	defer m.observe(hooks.OpDelete, time.Now(), &err)

	hctx := hooks.NewContext(ctx, hooks.OpDelete, doc.Schema())
	if err := m.conn.hooks.Run(hctx, hooks.OpDelete, schema.PreDelete, doc); err != nil {
		return err
	}
	n, err := m.coll.DeleteMany(ctx, driver.Filter{schema.IDKey: doc.ID()})
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, m.desc.Name(), doc.ID())
	}
	return m.conn.hooks.Run(hctx, hooks.OpDelete, schema.PostDelete, doc)
}

// observe logs and records the outcome of an operation
func (m *Model) observe(op hooks.Operation, start time.Time, errp *error) {
	duration := time.Since(start)
	var err error
	if errp != nil {
		err = *errp
	}
	m.conn.metrics.RecordOperation(m.desc.Name(), string(op), duration, err)

	fields := []zap.Field{
		zap.String("model", m.desc.Name()),
		zap.String("operation", string(op)),
		zap.Duration("duration", duration),
	}
	if err != nil {
		m.conn.logger.Warn("operation failed", append(fields, zap.Error(err))...)
		return
	}
	m.conn.logger.Debug("operation completed", fields...)
}
