package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// CastError reports a value that cannot be converted to its field type
type CastError struct {
	Field string
	Type  string
	Value interface{}
}

// Error implements the error interface
func (e *CastError) Error() string {
	return fmt.Sprintf("cast to %s failed for value %q at path %s", e.Type, fmt.Sprint(e.Value), e.Field)
}

// Cast converts a value to the field's storage representation and applies the
// field's string transforms. nil is passed through.
func (f *Field) Cast(value interface{}) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if f.Type == TypeArray {
		return f.castArray(value)
	}
	out, ok := castScalar(f.Type, value)
	if !ok {
		return nil, &CastError{Field: f.Name, Type: f.TypeName(), Value: value}
	}
	if s, isStr := out.(string); isStr && f.Type == TypeString {
		out = f.transform(s)
	}
	return out, nil
}

func (f *Field) transform(s string) string {
	if f.Trim {
		s = strings.TrimSpace(s)
	}
	if f.Lowercase {
		s = strings.ToLower(s)
	}
	if f.Uppercase {
		s = strings.ToUpper(s)
	}
	return s
}

func (f *Field) castArray(value interface{}) (interface{}, error) {
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		// a single value is wrapped, as document stores do for array paths
		rv = reflect.ValueOf([]interface{}{value})
	}

	n := rv.Len()
	fail := func() error {
		return &CastError{Field: f.Name, Type: f.TypeName(), Value: value}
	}

	switch f.Elem {
	case TypeString, TypeObjectID:
		out := make([]string, 0, n)
		for i := 0; i < n; i++ {
			v, ok := castScalar(f.Elem, rv.Index(i).Interface())
			if !ok || v == nil {
				return nil, fail()
			}
			s := v.(string)
			if f.Elem == TypeString {
				s = f.transform(s)
			}
			out = append(out, s)
		}
		return out, nil
	case TypeNumber:
		out := make([]float64, 0, n)
		for i := 0; i < n; i++ {
			v, ok := castScalar(TypeNumber, rv.Index(i).Interface())
			if !ok || v == nil {
				return nil, fail()
			}
			out = append(out, v.(float64))
		}
		return out, nil
	case TypeBoolean:
		out := make([]bool, 0, n)
		for i := 0; i < n; i++ {
			v, ok := castScalar(TypeBoolean, rv.Index(i).Interface())
			if !ok || v == nil {
				return nil, fail()
			}
			out = append(out, v.(bool))
		}
		return out, nil
	case TypeDate:
		out := make([]time.Time, 0, n)
		for i := 0; i < n; i++ {
			v, ok := castScalar(TypeDate, rv.Index(i).Interface())
			if !ok || v == nil {
				return nil, fail()
			}
			out = append(out, v.(time.Time))
		}
		return out, nil
	default:
		out := make([]interface{}, 0, n)
		for i := 0; i < n; i++ {
			v, ok := castScalar(f.Elem, rv.Index(i).Interface())
			if !ok {
				return nil, fail()
			}
			out = append(out, v)
		}
		return out, nil
	}
}

func castScalar(t Type, value interface{}) (interface{}, bool) {
	if value == nil {
		return nil, true
	}
	switch t {
	case TypeString:
		return castString(value)
	case TypeNumber:
		f, ok := ToFloat64(value)
		if !ok {
			return nil, false
		}
		return f, true
	case TypeBoolean:
		return castBool(value)
	case TypeDate:
		return castDate(value)
	case TypeObjectID:
		switch v := value.(type) {
		case string:
			return v, v != ""
		case fmt.Stringer:
			s := v.String()
			return s, s != ""
		}
		return nil, false
	case TypeMap:
		return castMap(value)
	default:
		return value, true
	}
}

func castString(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case bool:
		return strconv.FormatBool(v), true
	case json.Number:
		return v.String(), true
	case fmt.Stringer:
		return v.String(), true
	}
	if f, ok := ToFloat64(value); ok {
		return strconv.FormatFloat(f, 'f', -1, 64), true
	}
	return nil, false
}

func castBool(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(v) {
		case "true", "1", "yes":
			return true, true
		case "false", "0", "no":
			return false, true
		}
		return nil, false
	}
	if f, ok := ToFloat64(value); ok && (f == 0 || f == 1) {
		return f == 1, true
	}
	return nil, false
}

func castDate(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case time.Time:
		return v.UTC(), true
	case *time.Time:
		if v == nil {
			return nil, true
		}
		return v.UTC(), true
	case string:
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if t, err := time.Parse(layout, v); err == nil {
				return t.UTC(), true
			}
		}
		return nil, false
	}
	if ms, ok := ToFloat64(value); ok {
		return time.UnixMilli(int64(ms)).UTC(), true
	}
	return nil, false
}

func castMap(value interface{}) (interface{}, bool) {
	switch v := value.(type) {
	case map[string]interface{}:
		return v, true
	case map[string]string:
		out := make(map[string]interface{}, len(v))
		for k, s := range v {
			out[k] = s
		}
		return out, true
	}
	rv := reflect.ValueOf(value)
	if rv.Kind() != reflect.Map || rv.Type().Key().Kind() != reflect.String {
		return nil, false
	}
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[iter.Key().String()] = iter.Value().Interface()
	}
	return out, true
}

// ToFloat64 converts Go numeric kinds, json.Number and numeric strings to float64
func ToFloat64(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
