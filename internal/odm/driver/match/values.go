package match

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"
)

// Lookup resolves a dotted path inside a record
func Lookup(record map[string]interface{}, path string) (interface{}, bool) {
	var cur interface{} = record
	for _, part := range strings.Split(path, ".") {
		m, ok := asMap(cur)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes a value at a dotted path, creating intermediate maps
func setPath(record map[string]interface{}, path string, value interface{}) bool {
	parts := strings.Split(path, ".")
	cur := record
	for _, part := range parts[:len(parts)-1] {
		next, ok := cur[part]
		if !ok || next == nil {
			m := make(map[string]interface{})
			cur[part] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]interface{})
		if !ok {
			return false
		}
		cur = m
	}
	cur[parts[len(parts)-1]] = value
	return true
}

// unsetPath removes the value at a dotted path
func unsetPath(record map[string]interface{}, path string) {
	parts := strings.Split(path, ".")
	cur := record
	for _, part := range parts[:len(parts)-1] {
		m, ok := cur[part].(map[string]interface{})
		if !ok {
			return
		}
		cur = m
	}
	delete(cur, parts[len(parts)-1])
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

// asSlice converts any slice (except []byte) to []interface{}
func asSlice(v interface{}) ([]interface{}, bool) {
	switch s := v.(type) {
	case nil:
		return nil, false
	case []interface{}:
		return s, true
	case []byte:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func asNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func asTime(v interface{}) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case *time.Time:
		if t == nil {
			return time.Time{}, false
		}
		return *t, true
	case string:
		if parsed, err := time.Parse(time.RFC3339Nano, t); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// equal compares two scalar or structured values with document-store semantics:
// numbers compare by value, times by instant, slices element-wise.
func equal(a, b interface{}) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if x, ok := asNumber(a); ok {
		y, ok := asNumber(b)
		return ok && x == y
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := asTime(b)
		return ok && ta.Equal(tb)
	}
	if tb, ok := b.(time.Time); ok {
		ta, ok := asTime(a)
		return ok && ta.Equal(tb)
	}
	if sa, ok := asSlice(a); ok {
		sb, ok := asSlice(b)
		if !ok || len(sa) != len(sb) {
			return false
		}
		for i := range sa {
			if !equal(sa[i], sb[i]) {
				return false
			}
		}
		return true
	}
	if ma, ok := asMap(a); ok {
		mb, ok := asMap(b)
		if !ok || len(ma) != len(mb) {
			return false
		}
		for k, va := range ma {
			vb, ok := mb[k]
			if !ok || !equal(va, vb) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(a, b)
}

// compare orders two values of the same kind. ok is false when the values are
// not comparable.
func compare(a, b interface{}) (int, bool) {
	if x, ok := asNumber(a); ok {
		y, ok := asNumber(b)
		if !ok {
			return 0, false
		}
		return cmp3(x < y, x > y), true
	}
	if ta, ok := a.(time.Time); ok {
		tb, ok := asTime(b)
		if !ok {
			return 0, false
		}
		return cmp3(ta.Before(tb), ta.After(tb)), true
	}
	if tb, ok := b.(time.Time); ok {
		ta, ok := asTime(a)
		if !ok {
			return 0, false
		}
		return cmp3(ta.Before(tb), ta.After(tb)), true
	}
	sa, okA := a.(string)
	sb, okB := b.(string)
	if okA && okB {
		return strings.Compare(sa, sb), true
	}
	ba, okA := a.(bool)
	bb, okB := b.(bool)
	if okA && okB {
		return cmp3(!ba && bb, ba && !bb), true
	}
	return 0, false
}

func cmp3(less, greater bool) int {
	switch {
	case less:
		return -1
	case greater:
		return 1
	default:
		return 0
	}
}

// Clone deep-copies a record so stored and returned data never share maps or slices
func Clone(record map[string]interface{}) map[string]interface{} {
	if record == nil {
		return nil
	}
	out := make(map[string]interface{}, len(record))
	for k, v := range record {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return Clone(val)
	case []interface{}:
		out := make([]interface{}, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		out := make([]string, len(val))
		copy(out, val)
		return out
	case []float64:
		out := make([]float64, len(val))
		copy(out, val)
		return out
	case []bool:
		out := make([]bool, len(val))
		copy(out, val)
		return out
	case []time.Time:
		out := make([]time.Time, len(val))
		copy(out, val)
		return out
	default:
		return v
	}
}
