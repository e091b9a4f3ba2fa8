package model

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// Discriminator binds child, a class extending this model's class, to this
// model's collection. Child documents carry their class name under the
// discriminator key; queries through the child model only see them, while
// queries through this model hydrate each result with its concrete class.
func (m *Model) Discriminator(ctx context.Context, child *schema.Description) (*Model, error) {
	root := m
	for root.base != nil {
		root = root.base
	}
	if child == nil || child == m.desc || !child.IsA(m.desc) {
		return nil, fmt.Errorf("%w: discriminator must extend %s", ErrWrongClass, m.desc.Name())
	}

	c := m.conn
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}
	if existing, ok := c.models[child.Name()]; ok {
		if existing.desc != child || existing.base == nil {
			return nil, fmt.Errorf("class %s is already bound", child.Name())
		}
		return existing, nil
	}

	// the collection keeps the text index of the root class
	var models []driver.IndexModel
	for _, im := range indexModels(child) {
		if im.IsText() && root.desc.TextIndex() != nil {
			continue
		}
		models = append(models, im)
	}
	sub := newModel(c, child, root.coll, m)
	if err := sub.ensureIndexes(ctx, models); err != nil {
		return nil, err
	}

	for cur := m; cur != nil; cur = cur.base {
		cur.mu.Lock()
		cur.subclasses[child.Name()] = child
		cur.mu.Unlock()
	}
	c.models[child.Name()] = sub

	c.logger.Debug("discriminator bound",
		zap.String("model", child.Name()),
		zap.String("base", root.desc.Name()),
		zap.String("collection", root.coll.Name()),
	)
	return sub, nil
}
