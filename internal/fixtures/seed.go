package fixtures

// Seed is the sample data loaded by the seed command, keyed by class name.
// Within a class, documents are inserted in order.
var Seed = map[string][]map[string]interface{}{
	IndexWeights.Name(): {
		{
			"about":    "NodeJS module for MongoDB",
			"content":  "MongoDB-native is the default driver for MongoDB in NodeJS",
			"keywords": []string{"mongodb", "js", "nodejs"},
		},
		{
			"about":    "NodeJS module for MongoDB",
			"content":  "Mongoose is a Module for NodeJS that interfaces with MongoDB",
			"keywords": []string{"mongoose", "js", "nodejs"},
		},
		{
			"about":    "TypeScript Module for Mongoose",
			"content":  "Typegoose is a Module for NodeJS that makes Mongoose more compatible with Typescript",
			"keywords": []string{"typegoose", "ts", "nodejs", "mongoose"},
		},
	},
	Alias.Name(): {
		{"alias": "hello from aliasProp", "normalProp": "hello from normalProp"},
	},
	User.Name(): {
		{
			"firstName": "Ada",
			"lastName":  "Lovelace",
			"uniqueId":  "ada",
			"email":     "Ada@Example.com",
			"age":       36,
			"languages": []string{"english", "french"},
			"job":       map[string]interface{}{"title": "Analyst"},
		},
		{
			"fullName":  "Grace Hopper",
			"uniqueId":  "grace",
			"age":       85,
			"languages": []string{"english"},
		},
	},
}

// SeedOrder lists the seeded classes in insertion order
var SeedOrder = []string{IndexWeights.Name(), Alias.Name(), User.Name()}
