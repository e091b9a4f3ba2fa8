package document

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

func aliasClass() *schema.Description {
	return schema.Define("Alias").Fields(
		schema.String("alias").Alias("aliasProp"),
		schema.String("normalProp"),
	).MustCompile()
}

func userClass() *schema.Description {
	return schema.Define("User").Fields(
		schema.String("first").Trim(),
		schema.String("last").Trim(),
		schema.String("email").Lowercase(),
		schema.Number("age"),
		schema.Date("born"),
		schema.StringArray("tags"),
		schema.Map("meta"),
		schema.String("role").Default("member"),
	).Virtual("fullName",
		func(doc schema.Accessor) interface{} {
			first, _ := doc.Get("first").(string)
			last, _ := doc.Get("last").(string)
			return strings.TrimSpace(first + " " + last)
		},
		func(doc schema.Accessor, value interface{}) error {
			first, last, _ := strings.Cut(value.(string), " ")
			if err := doc.Set("first", first); err != nil {
				return err
			}
			return doc.Set("last", last)
		},
	).Virtual("initial", func(doc schema.Accessor) interface{} {
		first, _ := doc.Get("first").(string)
		if first == "" {
			return nil
		}
		return first[:1]
	}, nil).MustCompile()
}

func TestAlias(t *testing.T) {
	doc := New(aliasClass())
	require.NoError(t, doc.Set("alias", "hello from aliasProp"))
	require.NoError(t, doc.Set("normalProp", "hello from normalProp"))

	assert.Equal(t, "hello from normalProp", doc.Get("normalProp"))
	assert.Equal(t, "hello from aliasProp", doc.Get("alias"))
	assert.Equal(t, "hello from aliasProp", doc.Get("aliasProp"))

	t.Run("with virtuals", func(t *testing.T) {
		obj := doc.ToObject(WithVirtuals())
		assert.Equal(t, "hello from normalProp", obj["normalProp"])
		assert.Equal(t, "hello from aliasProp", obj["alias"])
		assert.Equal(t, "hello from aliasProp", obj["aliasProp"])
	})

	t.Run("without virtuals", func(t *testing.T) {
		obj := doc.ToObject()
		assert.Equal(t, "hello from normalProp", obj["normalProp"])
		assert.Equal(t, "hello from aliasProp", obj["alias"])
		assert.NotContains(t, obj, "aliasProp")
	})

	t.Run("setting through the alias stores the field", func(t *testing.T) {
		require.NoError(t, doc.Set("aliasProp", "changed"))
		assert.Equal(t, "changed", doc.Values()["alias"])
		assert.NotContains(t, doc.Values(), "aliasProp")
	})
}

func TestSetCastsAndTransforms(t *testing.T) {
	doc := New(userClass())

	require.NoError(t, doc.Set("first", "  Ada "))
	require.NoError(t, doc.Set("email", "ADA@Example.COM"))
	require.NoError(t, doc.Set("age", "36"))
	require.NoError(t, doc.Set("born", "1815-12-10"))
	require.NoError(t, doc.Set("tags", []interface{}{"math"}))

	assert.Equal(t, "Ada", doc.Get("first"))
	assert.Equal(t, "ada@example.com", doc.Get("email"))
	assert.Equal(t, 36.0, doc.Get("age"))
	assert.Equal(t, time.Date(1815, 12, 10, 0, 0, 0, 0, time.UTC), doc.Get("born"))
	assert.Equal(t, []string{"math"}, doc.Get("tags"))
	assert.Equal(t, "member", doc.Get("role"), "defaults are applied")

	err := doc.Set("age", "old")
	var castErr *schema.CastError
	require.ErrorAs(t, err, &castErr)
	assert.Contains(t, doc.CastErrors(), "age")
	assert.Equal(t, 36.0, doc.Get("age"), "failed cast keeps the previous value")

	require.NoError(t, doc.Set("age", 37))
	assert.Empty(t, doc.CastErrors())

	assert.ErrorIs(t, doc.Set("nope", 1), ErrUnknownPath)
	assert.ErrorIs(t, doc.Set("age.x", 1), ErrUnknownPath)

	require.NoError(t, doc.Set("age", nil))
	assert.NotContains(t, doc.Values(), "age")
}

func TestVirtuals(t *testing.T) {
	doc := New(userClass())
	require.NoError(t, doc.Set("fullName", "Grace Hopper"))

	assert.Equal(t, "Grace", doc.Get("first"))
	assert.Equal(t, "Hopper", doc.Get("last"))
	assert.Equal(t, "Grace Hopper", doc.Get("fullName"))
	assert.Equal(t, "G", doc.Get("initial"))

	assert.ErrorIs(t, doc.Set("initial", "x"), ErrReadOnlyVirtual)

	require.NoError(t, doc.Set("_id", "42"))
	obj := doc.ToObject(WithVirtuals())
	assert.Equal(t, "42", obj["id"])
	assert.Equal(t, "Grace Hopper", obj["fullName"])
	assert.NotContains(t, doc.ToObject(), "id")
}

func TestNestedMapPaths(t *testing.T) {
	doc := New(userClass())
	require.NoError(t, doc.Set("meta.theme", "dark"))
	require.NoError(t, doc.Set("meta.layout.cols", 2))

	assert.Equal(t, "dark", doc.Get("meta.theme"))
	assert.Equal(t, 2, doc.Get("meta.layout.cols"))
	assert.True(t, doc.IsModified("meta"))
	assert.True(t, doc.IsModified("meta.theme"))
}

func TestModifiedTracking(t *testing.T) {
	desc := userClass()
	doc := Hydrate(desc, map[string]interface{}{
		"_id":   "1",
		"first": "Ada",
		"age":   36.0,
		"born":  "1815-12-10T00:00:00Z",
		"tags":  []interface{}{"math"},
	}, 0)

	assert.False(t, doc.IsNew())
	assert.Empty(t, doc.ModifiedPaths())
	assert.IsType(t, time.Time{}, doc.Get("born"), "hydration casts stored values")
	assert.Equal(t, []string{"math"}, doc.Get("tags"))

	require.NoError(t, doc.Set("first", "Ada"))
	assert.Empty(t, doc.ModifiedPaths(), "same value is not a modification")

	require.NoError(t, doc.Set("age", 37))
	require.NoError(t, doc.Set("first", "Augusta"))
	require.NoError(t, doc.Set("tags", nil))
	assert.Equal(t, []string{"first", "age", "tags"}, doc.ModifiedPaths())
	assert.True(t, doc.IsModified("age"))
	assert.False(t, doc.IsModified("born"))

	changes := doc.Changes()
	require.Len(t, changes, 3)
	assert.Equal(t, 36.0, changes[1].OldValue)
	assert.Equal(t, 37.0, changes[1].NewValue)
	assert.Nil(t, changes[2].NewValue)

	// Reverting a value clears the modification
	require.NoError(t, doc.Set("age", 36))
	assert.False(t, doc.IsModified("age"))

	doc.MarkPersisted()
	assert.Empty(t, doc.ModifiedPaths())
}

func TestHydrateKeepsUncastableValues(t *testing.T) {
	doc := Hydrate(userClass(), map[string]interface{}{"_id": "1", "age": "unknown", "__v": 3.0}, 2.5)
	assert.Equal(t, "unknown", doc.Get("age"))
	assert.Equal(t, 3.0, doc.Get("__v"))
	assert.Equal(t, 2.5, doc.TextScore())
	assert.Equal(t, "1", doc.ID())
}

func TestValuesAreCopies(t *testing.T) {
	doc := New(userClass())
	require.NoError(t, doc.Set("tags", []string{"a"}))

	values := doc.Values()
	values["tags"].([]string)[0] = "z"
	assert.Equal(t, []string{"a"}, doc.Get("tags"))
}

func TestPopulated(t *testing.T) {
	author := New(userClass())
	require.NoError(t, author.Set("first", "Ada"))

	post := New(schema.Define("Post").Fields(schema.Ref("author", "User")).MustCompile())
	require.NoError(t, post.Set("author", "u1"))
	post.SetPopulated("author", author)

	assert.Same(t, author, post.Get("author"))
	got, ok := post.Populated("author")
	require.True(t, ok)
	assert.Same(t, author, got)
	assert.Equal(t, "u1", post.Values()["author"])
	assert.Equal(t, "Ada", post.ToObject()["author"].(map[string]interface{})["first"])

	// Writing the reference drops the populated document
	require.NoError(t, post.Set("author", "u2"))
	assert.Equal(t, "u2", post.Get("author"))
}

func TestTypeGuards(t *testing.T) {
	doc := New(aliasClass())
	var nilDoc *Document

	assert.True(t, IsDocument(doc))
	assert.False(t, IsDocument(nilDoc))
	assert.False(t, IsDocument(map[string]interface{}{}))

	assert.True(t, IsDocumentArray([]*Document{doc, doc}))
	assert.True(t, IsDocumentArray([]interface{}{doc}))
	assert.False(t, IsDocumentArray([]interface{}{doc, "x"}))
	assert.False(t, IsDocumentArray([]*Document{doc, nil}))
	assert.False(t, IsDocumentArray([]*Document{}))
	assert.False(t, IsDocumentArray(doc))
}
