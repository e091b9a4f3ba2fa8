package match

import (
	"fmt"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
)

// ApplyUpdate returns a copy of record with update applied. The identifier
// cannot be changed.
func ApplyUpdate(record map[string]interface{}, update driver.Update) (map[string]interface{}, error) {
	if _, ok := update.Set[driver.IDKey]; ok {
		if !equal(update.Set[driver.IDKey], record[driver.IDKey]) {
			return nil, fmt.Errorf("%w: %s is immutable", driver.ErrBadFilter, driver.IDKey)
		}
	}
	for _, path := range update.Unset {
		if path == driver.IDKey {
			return nil, fmt.Errorf("%w: %s is immutable", driver.ErrBadFilter, driver.IDKey)
		}
	}
	if _, ok := update.Inc[driver.IDKey]; ok {
		return nil, fmt.Errorf("%w: %s is immutable", driver.ErrBadFilter, driver.IDKey)
	}

	out := Clone(record)
	for path, value := range update.Set {
		if !setPath(out, path, cloneValue(value)) {
			return nil, fmt.Errorf("%w: cannot set %s on a non-document value", driver.ErrBadFilter, path)
		}
	}
	for _, path := range update.Unset {
		unsetPath(out, path)
	}
	for path, delta := range update.Inc {
		current, found := Lookup(out, path)
		base := 0.0
		if found && current != nil {
			n, ok := asNumber(current)
			if !ok {
				return nil, fmt.Errorf("%w: cannot increment non-numeric field %s", driver.ErrBadFilter, path)
			}
			base = n
		}
		if !setPath(out, path, base+delta) {
			return nil, fmt.Errorf("%w: cannot set %s on a non-document value", driver.ErrBadFilter, path)
		}
	}
	return out, nil
}
