package match

import (
	"fmt"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
)

// CheckUnique verifies that candidate does not collide with any of others on a
// unique index. others must not include the stored version of candidate.
// Sparse indexes ignore records where every key is missing.
func CheckUnique(candidate map[string]interface{}, others []map[string]interface{}, indexes []driver.IndexModel) error {
	if _, ok := candidate[driver.IDKey]; ok {
		for _, other := range others {
			if equal(other[driver.IDKey], candidate[driver.IDKey]) {
				return fmt.Errorf("%w: index %s", driver.ErrDuplicateKey, driver.IDKey)
			}
		}
	}

	for _, idx := range indexes {
		if !idx.Unique || idx.IsText() || len(idx.Keys) == 0 {
			continue
		}
		want, present := indexValues(candidate, idx)
		if idx.Sparse && !present {
			continue
		}
		for _, other := range others {
			got, otherPresent := indexValues(other, idx)
			if idx.Sparse && !otherPresent {
				continue
			}
			if equal(want, got) {
				return fmt.Errorf("%w: index %s", driver.ErrDuplicateKey, idx.Name)
			}
		}
	}
	return nil
}

// indexValues collects the key values of an index; present is true when at
// least one key exists
func indexValues(record map[string]interface{}, idx driver.IndexModel) ([]interface{}, bool) {
	values := make([]interface{}, len(idx.Keys))
	present := false
	for i, key := range idx.Keys {
		v, ok := Lookup(record, key.Field)
		if ok && v != nil {
			present = true
			values[i] = v
		}
	}
	return values, present
}
