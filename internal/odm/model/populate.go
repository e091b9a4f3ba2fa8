package model

import (
	"context"
	"fmt"

	"github.com/conduit-lang/docmodel/internal/odm/document"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// Populate loads the documents referenced at path and attaches them to doc.
// Single references attach a *document.Document, reference arrays attach
// []*document.Document in identifier order. Missing referenced documents are
// skipped; a dangling single reference leaves the path unpopulated.
func (m *Model) Populate(ctx context.Context, doc *document.Document, path string) error {
	stored := doc.Schema().ResolvePath(path)
	f, ok := doc.Schema().Field(stored)
	if !ok || f.Ref == "" {
		return fmt.Errorf("%w: %s.%s", ErrNotReference, doc.Schema().Name(), path)
	}

	refDesc, ok := m.conn.registry.Get(f.Ref)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownClass, f.Ref)
	}
	refModel, err := m.conn.Model(ctx, refDesc)
	if err != nil {
		return err
	}

	switch ids := doc.Values()[stored].(type) {
	case nil:
		return nil
	case string:
		target, err := refModel.FindByID(ctx, ids)
		if err != nil {
			if IsNotFound(err) {
				return nil
			}
			return err
		}
		doc.SetPopulated(stored, target)
		return nil
	case []string:
		found, err := refModel.Find(ctx, driver.Filter{schema.IDKey: driver.Filter{"$in": ids}})
		if err != nil {
			return err
		}
		byID := make(map[string]*document.Document, len(found))
		for _, d := range found {
			byID[d.ID()] = d
		}
		targets := make([]*document.Document, 0, len(ids))
		for _, id := range ids {
			if d, ok := byID[id]; ok {
				targets = append(targets, d)
			}
		}
		doc.SetPopulated(stored, targets)
		return nil
	default:
		return fmt.Errorf("%w: %s holds %T", ErrNotReference, path, ids)
	}
}
