// Package fixtures declares sample document classes and seed data used by the
// command line tool and by tests.
package fixtures

import (
	"context"
	"strings"

	"github.com/conduit-lang/docmodel/internal/odm/schema"
	"github.com/conduit-lang/docmodel/internal/odm/validation"
)

// Alias stores "alias" and exposes it as the virtual "aliasProp"
var Alias = schema.Define("Alias").Fields(
	schema.String("alias").Alias("aliasProp"),
	schema.String("normalProp"),
).MustCompile()

// IndexWeights carries a weighted text index over about, content and keywords
var IndexWeights = schema.Define("IndexWeights").Fields(
	schema.String("about").Text(10),
	schema.String("content").Text(2),
	schema.StringArray("keywords").Text(5),
).MustCompile()

// Vehicle is the base class of the vehicle discriminators
var Vehicle = schema.Define("Vehicle").Fields(
	schema.String("make").Required().Trim(),
	schema.String("model").Trim(),
	schema.Number("year").Min(1886),
).Timestamps().MustCompile()

// Car is stored in the vehicles collection
var Car = schema.Define("Car").Extends(Vehicle).Fields(
	schema.Number("doors").Min(1).Max(6).Default(4.0),
	schema.String("plate").Uppercase().Unique().Sparse(),
).MustCompile()

// Motorcycle is stored in the vehicles collection
var Motorcycle = schema.Define("Motorcycle").Extends(Vehicle).Fields(
	schema.Boolean("sidecar").Default(false),
).MustCompile()

// User references cars and derives fullName from its name fields
var User = schema.Define("User").Fields(
	schema.String("firstName").Required().Trim(),
	schema.String("lastName").Required().Trim(),
	schema.String("nick").Trim(),
	schema.String("uniqueId").Unique().Sparse(),
	schema.String("email").Lowercase().Validate(validation.Email),
	schema.Number("age").Min(0).Max(150),
	schema.StringArray("languages").Enum("english", "german", "french", "spanish"),
	schema.Map("job"),
	schema.Ref("car", "Car"),
	schema.RefArray("previousCars", "Car"),
	schema.String("password").Hidden(),
).Virtual("fullName",
	func(doc schema.Accessor) interface{} {
		first, _ := doc.Get("firstName").(string)
		last, _ := doc.Get("lastName").(string)
		return strings.TrimSpace(first + " " + last)
	},
	func(doc schema.Accessor, value interface{}) error {
		s, _ := value.(string)
		first, last, _ := strings.Cut(strings.TrimSpace(s), " ")
		if err := doc.Set("firstName", first); err != nil {
			return err
		}
		return doc.Set("lastName", last)
	},
).Index(schema.IndexOn(schema.Asc("lastName"), schema.Asc("firstName"))).Timestamps().MustCompile()

// modifiedChecker is implemented by document instances
type modifiedChecker interface {
	IsModified(path string) bool
}

// Hooked records its lifecycle in shape and material
var Hooked = schema.Define("Hooked").Fields(
	schema.String("material"),
	schema.String("shape"),
).Pre(schema.PreValidate, func(ctx context.Context, doc schema.Accessor) error {
	if doc.Get("material") == nil {
		return doc.Set("material", "steel")
	}
	return nil
}).Pre(schema.PreSave, func(ctx context.Context, doc schema.Accessor) error {
	if mc, ok := doc.(modifiedChecker); ok && mc.IsModified("shape") {
		return doc.Set("shape", "newShape")
	}
	return doc.Set("shape", "oldShape")
}).MustCompile()

// SelectDoc hides test2 from query results unless it is selected
var SelectDoc = schema.Define("SelectDoc").Fields(
	schema.String("test1"),
	schema.String("test2").Hidden(),
	schema.String("test3"),
).MustCompile()

// StringValidators exercises the string constraints and transforms
var StringValidators = schema.Define("StringValidators").Fields(
	schema.String("maxLength").MaxLength(3),
	schema.String("minLength").MinLength(10),
	schema.String("trimmed").Trim(),
	schema.String("uppercased").Uppercase(),
	schema.String("lowercased").Lowercase(),
	schema.String("enumed").Enum("one", "two"),
	schema.StringArray("enumedArray").Enum("one", "two"),
	schema.String("matched").Match(`^[a-z]+$`),
).MustCompile()

// All returns every fixture class, base classes before their children
func All() []*schema.Description {
	return []*schema.Description{
		Alias, IndexWeights, Vehicle, Car, Motorcycle, User, Hooked, SelectDoc, StringValidators,
	}
}

// Discriminators maps base class names to the classes stored in their collection
func Discriminators() map[string][]*schema.Description {
	return map[string][]*schema.Description{
		Vehicle.Name(): {Car, Motorcycle},
	}
}

// Registry returns a new frozen registry holding every fixture class
func Registry() *schema.Registry {
	r := schema.NewRegistry()
	r.MustRegister(All()...)
	r.Freeze()
	return r
}
