package model

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/conduit-lang/docmodel/internal/odm/document"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/hooks"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
	"github.com/conduit-lang/docmodel/internal/odm/validation"
)

// UpdateByID applies update to the document with the given identifier
func (m *Model) UpdateByID(ctx context.Context, id string, update map[string]interface{}) error {
	n, err := m.UpdateOne(ctx, driver.Filter{schema.IDKey: id}, update)
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s %s", ErrNotFound, m.desc.Name(), id)
	}
	return nil
}

// UpdateOne applies update to the first document matching filter and reports
// whether one matched. The update uses $set, $unset and $inc; top-level keys
// without an operator are set. Values are cast and validated against the
// field declarations before the driver is called.
func (m *Model) UpdateOne(ctx context.Context, filter driver.Filter, update map[string]interface{}) (n int64, err error) {
	defer m.observe(hooks.OpUpdate, time.Now(), &err)

	upd, err := m.buildUpdate(update)
	if err != nil {
		return 0, err
	}
	if upd.IsEmpty() {
		return 0, fmt.Errorf("%w: nothing to update", ErrInvalidUpdate)
	}
	return m.coll.UpdateOne(ctx, m.scope(m.translateFilter(filter)), upd)
}

// buildUpdate splits an update document into its operators, translating
// aliases and casting values
func (m *Model) buildUpdate(update map[string]interface{}) (driver.Update, error) {
	upd := driver.Update{}
	sets := make(map[string]interface{})
	var unsets []string
	incs := make(map[string]interface{})

	for key, value := range update {
		switch key {
		case "$set":
			fields, ok := value.(map[string]interface{})
			if !ok {
				return upd, fmt.Errorf("%w: $set requires a document", ErrInvalidUpdate)
			}
			for k, v := range fields {
				sets[k] = v
			}
		case "$unset":
			switch v := value.(type) {
			case map[string]interface{}:
				for k := range v {
					unsets = append(unsets, k)
				}
			case []string:
				unsets = append(unsets, v...)
			default:
				return upd, fmt.Errorf("%w: $unset requires a document", ErrInvalidUpdate)
			}
		case "$inc":
			fields, ok := value.(map[string]interface{})
			if !ok {
				return upd, fmt.Errorf("%w: $inc requires a document", ErrInvalidUpdate)
			}
			for k, v := range fields {
				incs[k] = v
			}
		default:
			if strings.HasPrefix(key, "$") {
				return upd, fmt.Errorf("%w: unsupported operator %s", ErrInvalidUpdate, key)
			}
			sets[key] = value
		}
	}

	verrs := validation.NewValidationErrors(m.desc.Name())

	for _, path := range sortedKeys(sets) {
		stored, f, err := m.updatePath(path)
		if err != nil {
			return upd, err
		}
		value := sets[path]
		if f != nil {
			cast, err := f.Cast(value)
			if err != nil {
				verrs.Add(f.Name, fmt.Sprintf("cannot cast %v to %s", value, f.TypeName()))
				continue
			}
			if err := m.conn.validator.ValidateValue(f, cast); err != nil {
				if fieldErrs, ok := ValidationErrors(err); ok {
					for _, msg := range fieldErrs.Fields[f.Name] {
						verrs.Add(f.Name, msg)
					}
					continue
				}
				return upd, err
			}
			value = cast
		}
		if value == nil {
			unsets = append(unsets, path)
			continue
		}
		if upd.Set == nil {
			upd.Set = make(map[string]interface{})
		}
		upd.Set[stored] = value
	}

	sort.Strings(unsets)
	for _, path := range unsets {
		stored, f, err := m.updatePath(path)
		if err != nil {
			return upd, err
		}
		if f != nil && f.Required {
			verrs.Add(f.Name, "is required")
			continue
		}
		upd.Unset = append(upd.Unset, stored)
	}

	for _, path := range sortedKeys(incs) {
		stored, f, err := m.updatePath(path)
		if err != nil {
			return upd, err
		}
		if f != nil && f.Type != schema.TypeNumber {
			return upd, fmt.Errorf("%w: cannot increment %s field %s", ErrInvalidUpdate, f.TypeName(), f.Name)
		}
		by, ok := schema.ToFloat64(incs[path])
		if !ok {
			return upd, fmt.Errorf("%w: $inc of %s requires a number", ErrInvalidUpdate, path)
		}
		if upd.Inc == nil {
			upd.Inc = make(map[string]float64)
		}
		upd.Inc[stored] = by
	}

	if verrs.HasErrors() {
		m.conn.metrics.RecordValidationFailure(m.desc.Name())
		return upd, fmt.Errorf("%w: %w", ErrValidationFailed, verrs)
	}

	if upd.IsEmpty() {
		return upd, nil
	}
	if m.desc.Timestamps() {
		if upd.Set == nil {
			upd.Set = make(map[string]interface{})
		}
		if _, explicit := upd.Set[schema.UpdatedAtKey]; !explicit {
			upd.Set[schema.UpdatedAtKey] = m.conn.now().UTC()
		}
	}
	if vk := m.desc.VersionKey(); vk != "" {
		if upd.Inc == nil {
			upd.Inc = make(map[string]float64)
		}
		upd.Inc[vk] = 1
	}
	return upd, nil
}

// updatePath resolves an update path to its stored form. The field is
// returned for whole-field paths; nested paths into map fields are written
// as given.
func (m *Model) updatePath(path string) (string, *schema.Field, error) {
	stored := m.desc.ResolvePath(path)
	head, _, nested := strings.Cut(stored, ".")
	if m.desc.IsReserved(head) {
		return "", nil, fmt.Errorf("%w: %s is maintained by the model", ErrInvalidUpdate, head)
	}
	f, ok := m.desc.Field(head)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", document.ErrUnknownPath, path)
	}
	if nested {
		if f.Type != schema.TypeMap && f.Type != schema.TypeMixed {
			return "", nil, fmt.Errorf("%w: %s", document.ErrUnknownPath, path)
		}
		return stored, nil, nil
	}
	return stored, f, nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
