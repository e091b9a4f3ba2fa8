// Package match is the reference query engine shared by the bundled drivers. It
// evaluates filters, $text searches over weighted indexes, updates, unique index
// checks, sorting and projection against in-memory records.
package match

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
)

// Matches reports whether a record satisfies a filter. $text is not handled
// here; use Query or SplitText first.
func Matches(record map[string]interface{}, filter map[string]interface{}) (bool, error) {
	for key, cond := range filter {
		ok, err := matchKey(record, key, cond)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchKey(record map[string]interface{}, key string, cond interface{}) (bool, error) {
	switch key {
	case "$and", "$or", "$nor":
		subs, err := subFilters(key, cond)
		if err != nil {
			return false, err
		}
		return matchLogical(record, key, subs)
	case "$text":
		return false, fmt.Errorf("%w: $text must be handled by the text engine", driver.ErrBadFilter)
	}
	if strings.HasPrefix(key, "$") {
		return false, fmt.Errorf("%w: unknown top-level operator %s", driver.ErrBadFilter, key)
	}

	value, found := Lookup(record, key)
	if ops, isOps, err := operatorDoc(cond); err != nil {
		return false, err
	} else if isOps {
		return matchOperators(value, found, ops)
	}
	return matchEq(value, found, cond), nil
}

func subFilters(op string, cond interface{}) ([]map[string]interface{}, error) {
	items, ok := asSlice(cond)
	if !ok || len(items) == 0 {
		return nil, fmt.Errorf("%w: %s requires a non-empty array", driver.ErrBadFilter, op)
	}
	subs := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		m, ok := asMap(item)
		if !ok {
			return nil, fmt.Errorf("%w: %s entries must be filters", driver.ErrBadFilter, op)
		}
		subs = append(subs, m)
	}
	return subs, nil
}

func matchLogical(record map[string]interface{}, op string, subs []map[string]interface{}) (bool, error) {
	for _, sub := range subs {
		ok, err := Matches(record, sub)
		if err != nil {
			return false, err
		}
		switch op {
		case "$and":
			if !ok {
				return false, nil
			}
		case "$or":
			if ok {
				return true, nil
			}
		case "$nor":
			if ok {
				return false, nil
			}
		}
	}
	return op != "$or", nil
}

// operatorDoc reports whether cond is a map of $-operators
func operatorDoc(cond interface{}) (map[string]interface{}, bool, error) {
	m, ok := asMap(cond)
	if !ok || len(m) == 0 {
		return nil, false, nil
	}
	ops := 0
	for k := range m {
		if strings.HasPrefix(k, "$") {
			ops++
		}
	}
	switch ops {
	case 0:
		return nil, false, nil
	case len(m):
		return m, true, nil
	default:
		return nil, false, fmt.Errorf("%w: cannot mix operators and fields", driver.ErrBadFilter)
	}
}

// matchEq implements implicit equality, including array containment
func matchEq(value interface{}, found bool, want interface{}) bool {
	if !found {
		return want == nil
	}
	if equal(value, want) {
		return true
	}
	if items, ok := asSlice(value); ok {
		for _, item := range items {
			if equal(item, want) {
				return true
			}
		}
	}
	return false
}

func matchOperators(value interface{}, found bool, ops map[string]interface{}) (bool, error) {
	for op, arg := range ops {
		ok, err := matchOperator(value, found, op, arg, ops)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func matchOperator(value interface{}, found bool, op string, arg interface{}, ops map[string]interface{}) (bool, error) {
	switch op {
	case "$eq":
		return matchEq(value, found, arg), nil
	case "$ne":
		return !matchEq(value, found, arg), nil
	case "$gt", "$gte", "$lt", "$lte":
		if !found {
			return false, nil
		}
		return anyElement(value, func(v interface{}) bool {
			c, ok := compare(v, arg)
			if !ok {
				return false
			}
			switch op {
			case "$gt":
				return c > 0
			case "$gte":
				return c >= 0
			case "$lt":
				return c < 0
			default:
				return c <= 0
			}
		}), nil
	case "$in", "$nin":
		list, ok := asSlice(arg)
		if !ok {
			return false, fmt.Errorf("%w: %s requires an array", driver.ErrBadFilter, op)
		}
		in := false
		for _, want := range list {
			if matchEq(value, found, want) {
				in = true
				break
			}
		}
		return in == (op == "$in"), nil
	case "$exists":
		want, ok := arg.(bool)
		if !ok {
			return false, fmt.Errorf("%w: $exists requires a boolean", driver.ErrBadFilter)
		}
		return found == want, nil
	case "$regex":
		re, err := compileRegex(arg, ops["$options"])
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		return anyElement(value, func(v interface{}) bool {
			s, ok := v.(string)
			return ok && re.MatchString(s)
		}), nil
	case "$options":
		return true, nil
	case "$size":
		n, ok := asNumber(arg)
		if !ok {
			return false, fmt.Errorf("%w: $size requires a number", driver.ErrBadFilter)
		}
		items, isSlice := asSlice(value)
		return found && isSlice && float64(len(items)) == n, nil
	case "$all":
		list, ok := asSlice(arg)
		if !ok {
			return false, fmt.Errorf("%w: $all requires an array", driver.ErrBadFilter)
		}
		for _, want := range list {
			if !matchEq(value, found, want) {
				return false, nil
			}
		}
		return found, nil
	case "$not":
		sub, ok := asMap(arg)
		if !ok {
			return false, fmt.Errorf("%w: $not requires an operator document", driver.ErrBadFilter)
		}
		matched, err := matchOperators(value, found, sub)
		return !matched, err
	default:
		return false, fmt.Errorf("%w: unknown operator %s", driver.ErrBadFilter, op)
	}
}

// anyElement applies pred to a scalar, or to each element of an array
func anyElement(value interface{}, pred func(interface{}) bool) bool {
	if pred(value) {
		return true
	}
	if items, ok := asSlice(value); ok {
		for _, item := range items {
			if pred(item) {
				return true
			}
		}
	}
	return false
}

func compileRegex(pattern, options interface{}) (*regexp.Regexp, error) {
	var expr string
	switch p := pattern.(type) {
	case string:
		expr = p
	case *regexp.Regexp:
		return p, nil
	default:
		return nil, fmt.Errorf("%w: $regex requires a string", driver.ErrBadFilter)
	}
	if opts, ok := options.(string); ok && opts != "" {
		flags := ""
		for _, o := range opts {
			switch o {
			case 'i', 'm', 's':
				flags += string(o)
			default:
				return nil, fmt.Errorf("%w: unsupported $options flag %q", driver.ErrBadFilter, o)
			}
		}
		expr = "(?" + flags + ")" + expr
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", driver.ErrBadFilter, err)
	}
	return re, nil
}
