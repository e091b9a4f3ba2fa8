package document

import (
	"reflect"
	"strings"
	"time"
)

// FieldChange is a modification of a single top-level path
type FieldChange struct {
	Field    string
	OldValue interface{}
	NewValue interface{}
}

// tracker records which top-level paths changed since the last load or save
type tracker struct {
	order    []string
	original map[string]interface{}
	touched  map[string]bool
}

func newTracker(original map[string]interface{}) *tracker {
	return &tracker{
		original: deepCopyMap(original),
		touched:  make(map[string]bool),
	}
}

func (t *tracker) mark(path string) {
	head := topLevel(path)
	if t.touched[head] {
		return
	}
	t.touched[head] = true
	t.order = append(t.order, head)
}

// changes compares touched paths with their original values, in the order
// they were first touched
func (t *tracker) changes(current map[string]interface{}) []FieldChange {
	var out []FieldChange
	for _, field := range t.order {
		oldValue, hadOld := t.original[field]
		newValue, hasNew := current[field]
		if hadOld == hasNew && deepEqual(oldValue, newValue) {
			continue
		}
		out = append(out, FieldChange{Field: field, OldValue: oldValue, NewValue: newValue})
	}
	return out
}

func (t *tracker) modified(current map[string]interface{}, path string) bool {
	for _, c := range t.changes(current) {
		if c.Field == path || strings.HasPrefix(path, c.Field+".") || strings.HasPrefix(c.Field, path+".") {
			return true
		}
	}
	return false
}

func topLevel(path string) string {
	head, _, _ := strings.Cut(path, ".")
	return head
}

// deepCopyMap creates a deep copy of a map
func deepCopyMap(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return make(map[string]interface{})
	}
	result := make(map[string]interface{}, len(m))
	for k, v := range m {
		result[k] = deepCopyValue(v)
	}
	return result
}

// deepCopyValue copies maps and slices, keeping slice element types
func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case nil:
		return nil
	case map[string]interface{}:
		return deepCopyMap(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append(make([]string, 0, len(val)), val...)
	case []float64:
		return append(make([]float64, 0, len(val)), val...)
	case []bool:
		return append(make([]bool, 0, len(val)), val...)
	case []time.Time:
		return append(make([]time.Time, 0, len(val)), val...)
	default:
		return v
	}
}

// deepEqual compares two values, treating equal instants as equal
func deepEqual(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := b.(time.Time)
		return ok && ta.Equal(tb)
	}
	return reflect.DeepEqual(a, b)
}
