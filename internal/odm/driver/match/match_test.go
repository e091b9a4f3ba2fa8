package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmodel/internal/odm/driver"
)

func TestMatches(t *testing.T) {
	when := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	record := map[string]interface{}{
		"_id":    "1",
		"name":   "Ada",
		"age":    36.0,
		"tags":   []string{"math", "poetry"},
		"born":   when,
		"active": true,
		"address": map[string]interface{}{
			"city": "London",
		},
	}

	tests := []struct {
		name   string
		filter map[string]interface{}
		want   bool
	}{
		{"empty filter", map[string]interface{}{}, true},
		{"implicit eq", map[string]interface{}{"name": "Ada"}, true},
		{"int equals float", map[string]interface{}{"age": 36}, true},
		{"mismatch", map[string]interface{}{"name": "Bob"}, false},
		{"array containment", map[string]interface{}{"tags": "math"}, true},
		{"whole array", map[string]interface{}{"tags": []interface{}{"math", "poetry"}}, true},
		{"dotted path", map[string]interface{}{"address.city": "London"}, true},
		{"missing equals nil", map[string]interface{}{"nickname": nil}, true},
		{"gt", map[string]interface{}{"age": map[string]interface{}{"$gt": 30}}, true},
		{"lte", map[string]interface{}{"age": map[string]interface{}{"$lte": 35}}, false},
		{"range", map[string]interface{}{"age": map[string]interface{}{"$gte": 36, "$lt": 40}}, true},
		{"date compare", map[string]interface{}{"born": map[string]interface{}{"$lt": when.Add(time.Hour)}}, true},
		{"ne", map[string]interface{}{"name": map[string]interface{}{"$ne": "Ada"}}, false},
		{"in", map[string]interface{}{"name": map[string]interface{}{"$in": []interface{}{"Bob", "Ada"}}}, true},
		{"in on array", map[string]interface{}{"tags": map[string]interface{}{"$in": []string{"poetry"}}}, true},
		{"nin", map[string]interface{}{"name": map[string]interface{}{"$nin": []string{"Ada"}}}, false},
		{"exists", map[string]interface{}{"nickname": map[string]interface{}{"$exists": false}}, true},
		{"regex", map[string]interface{}{"name": map[string]interface{}{"$regex": "^a", "$options": "i"}}, true},
		{"size", map[string]interface{}{"tags": map[string]interface{}{"$size": 2}}, true},
		{"all", map[string]interface{}{"tags": map[string]interface{}{"$all": []string{"poetry", "math"}}}, true},
		{"not", map[string]interface{}{"age": map[string]interface{}{"$not": map[string]interface{}{"$gt": 40}}}, true},
		{"or", map[string]interface{}{"$or": []interface{}{
			map[string]interface{}{"name": "Bob"},
			map[string]interface{}{"active": true},
		}}, true},
		{"and", map[string]interface{}{"$and": []map[string]interface{}{
			{"name": "Ada"},
			{"active": false},
		}}, false},
		{"nor", map[string]interface{}{"$nor": []interface{}{
			map[string]interface{}{"name": "Bob"},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Matches(record, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMatchesBadFilters(t *testing.T) {
	record := map[string]interface{}{"a": 1.0}
	filters := []map[string]interface{}{
		{"a": map[string]interface{}{"$near": 1}},
		{"$where": "true"},
		{"$or": "nope"},
		{"a": map[string]interface{}{"$in": 1}},
		{"a": map[string]interface{}{"$exists": "yes"}},
		{"a": map[string]interface{}{"$gt": 1, "b": 2}},
		{"a": map[string]interface{}{"$regex": "("}},
		{"$text": map[string]interface{}{"$search": "x"}},
	}
	for _, filter := range filters {
		_, err := Matches(record, filter)
		assert.ErrorIs(t, err, driver.ErrBadFilter, "filter %v", filter)
	}
}

func TestParseSearch(t *testing.T) {
	s := ParseSearch(`mongoose -js "native driver" -"old api" The`)
	assert.Equal(t, []string{"mongoose", "native", "driver"}, s.Terms)
	assert.Equal(t, []string{"js"}, s.NegatedTerms)
	assert.Equal(t, []string{"native driver"}, s.Phrases)
	assert.Equal(t, []string{"old api"}, s.NegatedPhrases)

	assert.True(t, ParseSearch("-js").IsEmpty())
	assert.True(t, ParseSearch("the and").IsEmpty())
}

func TestPhraseIgnoresPunctuation(t *testing.T) {
	record := map[string]interface{}{"about": "A module, for MongoDB-native users"}
	weights := map[string]int{"about": 3}

	score, ok := Score(record, ParseSearch(`"module for"`), weights)
	assert.True(t, ok)
	assert.Equal(t, 6.0, score)

	_, ok = Score(record, ParseSearch(`"mongodb native"`), weights)
	assert.True(t, ok)

	_, ok = Score(record, ParseSearch(`module -"for mongodb"`), weights)
	assert.False(t, ok)

	_, ok = Score(record, ParseSearch(`"odule for"`), weights)
	assert.False(t, ok, "phrases match whole words only")

	s := ParseSearch(`"Module,  for"`)
	assert.Equal(t, []string{"module for"}, s.Phrases)
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"mongodb", "native", "default", "driver"},
		Tokenize("MongoDB-native is the default driver"))
}

func weightedRecords() []map[string]interface{} {
	return []map[string]interface{}{
		{
			"_id":      "mongodb",
			"about":    "NodeJS module for MongoDB",
			"content":  "MongoDB-native is the default driver for MongoDB in NodeJS",
			"keywords": []string{"mongodb", "js", "nodejs"},
		},
		{
			"_id":      "mongoose",
			"about":    "NodeJS module for MongoDB",
			"content":  "Mongoose is a Module for NodeJS that interfaces with MongoDB",
			"keywords": []string{"mongoose", "js", "nodejs"},
		},
		{
			"_id":      "typegoose",
			"about":    "TypeScript Module for Mongoose",
			"content":  "Typegoose is a Module for NodeJS that makes Mongoose more compatible with Typescript",
			"keywords": []string{"typegoose", "ts", "nodejs", "mongoose"},
		},
	}
}

func textIndexes() []driver.IndexModel {
	return []driver.IndexModel{{
		Name:    "indexweights_text",
		Weights: map[string]int{"about": 10, "content": 2, "keywords": 5},
	}}
}

func ids(results []driver.Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i], _ = r.Record["_id"].(string)
	}
	return out
}

func TestQueryText(t *testing.T) {
	records := weightedRecords()

	t.Run("ranked by weighted score", func(t *testing.T) {
		results, err := Query(records, map[string]interface{}{
			"$text": map[string]interface{}{"$search": "mongodb"},
		}, driver.FindOptions{}, textIndexes())
		require.NoError(t, err)
		assert.Equal(t, []string{"mongodb", "mongoose"}, ids(results))
		assert.Equal(t, 17.0, results[0].Score)
		assert.Equal(t, 12.0, results[1].Score)
	})

	t.Run("negated term excludes", func(t *testing.T) {
		results, err := Query(records, map[string]interface{}{
			"$text": map[string]interface{}{"$search": "mongoose -js"},
		}, driver.FindOptions{}, textIndexes())
		require.NoError(t, err)
		assert.Equal(t, []string{"typegoose"}, ids(results))
	})

	t.Run("higher weighted field ranks first", func(t *testing.T) {
		recs := []map[string]interface{}{
			{"_id": "low", "content": "gopher"},
			{"_id": "high", "about": "gopher"},
		}
		results, err := Query(recs, map[string]interface{}{
			"$text": map[string]interface{}{"$search": "gopher"},
		}, driver.FindOptions{}, textIndexes())
		require.NoError(t, err)
		assert.Equal(t, []string{"high", "low"}, ids(results))
	})

	t.Run("ties keep insertion order", func(t *testing.T) {
		results, err := Query(records, map[string]interface{}{
			"$text": map[string]interface{}{"$search": "nodejs"},
		}, driver.FindOptions{}, textIndexes())
		require.NoError(t, err)
		assert.Equal(t, []string{"mongodb", "mongoose", "typegoose"}, ids(results))
	})

	t.Run("phrase must be present", func(t *testing.T) {
		results, err := Query(records, map[string]interface{}{
			"$text": map[string]interface{}{"$search": `"default driver"`},
		}, driver.FindOptions{}, textIndexes())
		require.NoError(t, err)
		assert.Equal(t, []string{"mongodb"}, ids(results))
	})

	t.Run("only negated terms match nothing", func(t *testing.T) {
		results, err := Query(records, map[string]interface{}{
			"$text": map[string]interface{}{"$search": "-js"},
		}, driver.FindOptions{}, textIndexes())
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("combined with a field filter", func(t *testing.T) {
		results, err := Query(records, map[string]interface{}{
			"$text":    map[string]interface{}{"$search": "mongodb"},
			"keywords": "mongoose",
		}, driver.FindOptions{}, textIndexes())
		require.NoError(t, err)
		assert.Equal(t, []string{"mongoose"}, ids(results))
	})

	t.Run("no text index", func(t *testing.T) {
		_, err := Query(records, map[string]interface{}{
			"$text": map[string]interface{}{"$search": "mongodb"},
		}, driver.FindOptions{}, nil)
		assert.ErrorIs(t, err, driver.ErrNoTextIndex)
	})

	t.Run("malformed text clause", func(t *testing.T) {
		_, err := Query(records, map[string]interface{}{
			"$text": "mongodb",
		}, driver.FindOptions{}, textIndexes())
		assert.ErrorIs(t, err, driver.ErrBadFilter)
	})
}

func TestQueryOptions(t *testing.T) {
	records := []map[string]interface{}{
		{"_id": "a", "n": 3.0, "secret": "x"},
		{"_id": "b", "n": 1.0, "secret": "y"},
		{"_id": "c"},
		{"_id": "d", "n": 2.0, "secret": "z"},
	}

	results, err := Query(records, nil, driver.FindOptions{
		Sort: []driver.SortField{{Field: "n"}},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "b", "d", "a"}, ids(results))

	results, err = Query(records, nil, driver.FindOptions{
		Sort:    []driver.SortField{{Field: "n", Desc: true}},
		Skip:    1,
		Limit:   2,
		Exclude: []string{"secret"},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "b"}, ids(results))
	assert.NotContains(t, results[0].Record, "secret")
	assert.Equal(t, "z", records[3]["secret"], "projection must not touch stored records")

	results, err = Query(records, nil, driver.FindOptions{Skip: 10}, nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestApplyUpdate(t *testing.T) {
	record := map[string]interface{}{
		"_id":   "1",
		"name":  "Ada",
		"count": 1.0,
		"meta":  map[string]interface{}{"a": 1.0},
	}

	updated, err := ApplyUpdate(record, driver.Update{
		Set:   map[string]interface{}{"name": "Grace", "meta.b": 2.0},
		Unset: []string{"meta.a"},
		Inc:   map[string]float64{"count": 2, "fresh": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", updated["name"])
	assert.Equal(t, 3.0, updated["count"])
	assert.Equal(t, 1.0, updated["fresh"])
	assert.Equal(t, map[string]interface{}{"b": 2.0}, updated["meta"])
	assert.Equal(t, "Ada", record["name"], "original must not change")
	assert.Equal(t, map[string]interface{}{"a": 1.0}, record["meta"])

	_, err = ApplyUpdate(record, driver.Update{Set: map[string]interface{}{"_id": "2"}})
	assert.ErrorIs(t, err, driver.ErrBadFilter)

	_, err = ApplyUpdate(record, driver.Update{Inc: map[string]float64{"name": 1}})
	assert.ErrorIs(t, err, driver.ErrBadFilter)

	_, err = ApplyUpdate(record, driver.Update{Set: map[string]interface{}{"name.first": "x"}})
	assert.ErrorIs(t, err, driver.ErrBadFilter)
}

func TestCheckUnique(t *testing.T) {
	indexes := []driver.IndexModel{
		{Name: "email_1", Keys: []driver.IndexKey{{Field: "email"}}, Unique: true},
		{Name: "nick_1", Keys: []driver.IndexKey{{Field: "nick"}}, Unique: true, Sparse: true},
	}
	others := []map[string]interface{}{
		{"_id": "1", "email": "a@x.io"},
	}

	err := CheckUnique(map[string]interface{}{"_id": "2", "email": "a@x.io"}, others, indexes)
	require.ErrorIs(t, err, driver.ErrDuplicateKey)
	assert.Contains(t, err.Error(), "email_1")

	err = CheckUnique(map[string]interface{}{"_id": "1", "email": "b@x.io"}, others, indexes)
	assert.ErrorIs(t, err, driver.ErrDuplicateKey)

	// Two records without a nick do not collide on a sparse index
	assert.NoError(t, CheckUnique(map[string]interface{}{"_id": "3", "email": "c@x.io"}, others, indexes))

	// But two without an email collide on a non-sparse one
	assert.NoError(t, CheckUnique(map[string]interface{}{"_id": "4"}, others, indexes))
	err = CheckUnique(map[string]interface{}{"_id": "5"}, append(others, map[string]interface{}{"_id": "4"}), indexes)
	assert.ErrorIs(t, err, driver.ErrDuplicateKey)
}
