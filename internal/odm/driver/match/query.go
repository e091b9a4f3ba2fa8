package match

import (
	"sort"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
)

// TextWeights returns the weights of the first text index, or nil
func TextWeights(indexes []driver.IndexModel) map[string]int {
	for _, idx := range indexes {
		if idx.IsText() {
			return idx.Weights
		}
	}
	return nil
}

// Filter returns the records matching filter, in their given order, with text
// scores when filter contains $text
func Filter(records []map[string]interface{}, filter map[string]interface{}, indexes []driver.IndexModel) ([]driver.Result, error) {
	positions, scores, err := Select(records, filter, indexes)
	if err != nil {
		return nil, err
	}
	out := make([]driver.Result, len(positions))
	for i, pos := range positions {
		out[i] = driver.Result{Record: records[pos], Score: scores[i]}
	}
	return out, nil
}

// Select returns the positions of the records matching filter and their text
// scores
func Select(records []map[string]interface{}, filter map[string]interface{}, indexes []driver.IndexModel) ([]int, []float64, error) {
	rest, search, hasText, err := SplitText(filter)
	if err != nil {
		return nil, nil, err
	}
	var (
		weights map[string]int
		parsed  Search
	)
	if hasText {
		weights = TextWeights(indexes)
		if weights == nil {
			return nil, nil, driver.ErrNoTextIndex
		}
		parsed = ParseSearch(search)
	}

	var (
		positions []int
		scores    []float64
	)
	for i, record := range records {
		ok, err := Matches(record, rest)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			continue
		}
		var score float64
		if hasText {
			s, hit := Score(record, parsed, weights)
			if !hit {
				continue
			}
			score = s
		}
		positions = append(positions, i)
		scores = append(scores, score)
	}
	return positions, scores, nil
}

// Query evaluates a find against records held in insertion order. Text
// searches are ordered by descending score unless opts.Sort is set; ties keep
// insertion order. Returned records are copies.
func Query(records []map[string]interface{}, filter map[string]interface{}, opts driver.FindOptions, indexes []driver.IndexModel) ([]driver.Result, error) {
	results, err := Filter(records, filter, indexes)
	if err != nil {
		return nil, err
	}
	_, hasText := filter["$text"]

	switch {
	case len(opts.Sort) > 0:
		sort.SliceStable(results, func(i, j int) bool {
			return lessBy(results[i].Record, results[j].Record, opts.Sort)
		})
	case hasText:
		sort.SliceStable(results, func(i, j int) bool {
			return results[i].Score > results[j].Score
		})
	}

	results = Page(results, opts.Skip, opts.Limit)
	for i := range results {
		results[i].Record = Project(results[i].Record, opts.Exclude)
	}
	return results, nil
}

// Page applies skip and limit; a limit of zero means no limit
func Page(results []driver.Result, skip, limit int64) []driver.Result {
	if skip > 0 {
		if skip >= int64(len(results)) {
			return nil
		}
		results = results[skip:]
	}
	if limit > 0 && limit < int64(len(results)) {
		results = results[:limit]
	}
	return results
}

// Project returns a copy of record without the excluded paths
func Project(record map[string]interface{}, exclude []string) map[string]interface{} {
	out := Clone(record)
	for _, path := range exclude {
		unsetPath(out, path)
	}
	return out
}

// lessBy orders records by sort keys. Missing values sort before present ones.
func lessBy(a, b map[string]interface{}, keys []driver.SortField) bool {
	for _, key := range keys {
		va, okA := Lookup(a, key.Field)
		vb, okB := Lookup(b, key.Field)
		okA = okA && va != nil
		okB = okB && vb != nil

		var c int
		switch {
		case !okA && !okB:
			c = 0
		case !okA:
			c = -1
		case !okB:
			c = 1
		default:
			c, _ = compare(va, vb)
		}
		if c == 0 {
			continue
		}
		if key.Desc {
			return c > 0
		}
		return c < 0
	}
	return false
}
