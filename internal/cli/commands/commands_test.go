package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/docmodel/internal/fixtures"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/model"
)

func init() {
	color.NoColor = true
}

// writeConfig writes a docmodel.yml into a temp dir and returns its path
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docmodel.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func memoryConfig(t *testing.T) string {
	return writeConfig(t, "store:\n  kind: memory\nlog:\n  level: error\n")
}

func sqliteConfig(t *testing.T) string {
	db := filepath.Join(t.TempDir(), "docs.db")
	return writeConfig(t, fmt.Sprintf(`
store:
  kind: sql
  sql_driver: sqlite3
  url: %s
log:
  level: error
metrics:
  enabled: true
`, db))
}

// run executes the root command with args and returns its output
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	assert.Equal(t, "docmodel", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	var names []string
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	for _, expected := range []string{"version", "schema", "seed", "search", "create", "drop"} {
		assert.Contains(t, names, expected)
	}

	for _, flag := range []string{"config", "no-color"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestVersionCommand(t *testing.T) {
	Version = "1.0.0-test"
	GitCommit = "abc123"
	defer func() {
		Version = "dev"
		GitCommit = "unknown"
	}()

	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "docmodel version: 1.0.0-test")
	assert.Contains(t, out, "abc123")
	assert.Contains(t, out, "Go version:")
}

func TestSchemaCommand(t *testing.T) {
	t.Run("table", func(t *testing.T) {
		out, err := run(t, "schema", "User")
		require.NoError(t, err)
		assert.Contains(t, out, "User\n────\n")
		assert.Contains(t, out, "collection: users")
		assert.Contains(t, out, "fullName")
		assert.Contains(t, out, "uniqueId_1 (uniqueId:1) unique sparse")
		assert.Contains(t, out, "lastName_1_firstName_1 (lastName:1, firstName:1)")
		assert.Regexp(t, `firstName\s+string\s+required`, out)
		assert.Regexp(t, `password\s+string\s+hidden`, out)
		assert.Regexp(t, `car\s+ref<Car>`, out)
		assert.Regexp(t, `languages\s+array<string>\s+enum=english\|german\|french\|spanish`, out)
	})

	t.Run("every class by default", func(t *testing.T) {
		out, err := run(t, "schema")
		require.NoError(t, err)
		for _, name := range []string{"Alias", "Car", "IndexWeights", "User", "Vehicle"} {
			assert.Contains(t, out, name+"\n")
		}
		assert.Contains(t, out, "text index: about:10, content:2, keywords:5")
	})

	t.Run("yaml", func(t *testing.T) {
		out, err := run(t, "schema", "Car", "IndexWeights", "--format", "yaml")
		require.NoError(t, err)

		var docs []classDoc
		require.NoError(t, yaml.Unmarshal([]byte(out), &docs))
		require.Len(t, docs, 2)
		assert.Equal(t, "Car", docs[0].Name)
		assert.Equal(t, "Vehicle", docs[0].Extends)
		assert.Equal(t, "vehicles", docs[0].Collection)
		assert.Equal(t, map[string]int{"about": 10, "content": 2, "keywords": 5}, docs[1].TextIndex)
		assert.Equal(t, "__v", docs[1].VersionKey)
	})

	t.Run("json", func(t *testing.T) {
		out, err := run(t, "schema", "Alias", "-f", "json")
		require.NoError(t, err)

		var docs []classDoc
		require.NoError(t, json.Unmarshal([]byte(out), &docs))
		require.Len(t, docs, 1)
		require.Len(t, docs[0].Fields, 2)
		assert.Equal(t, "aliasProp", docs[0].Fields[0].Alias)
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := run(t, "schema", "--format", "xml")
		assert.ErrorContains(t, err, `unknown format "xml"`)
	})

	t.Run("unknown class", func(t *testing.T) {
		_, err := run(t, "schema", "Usr")
		var unknown *unknownClassError
		require.ErrorAs(t, err, &unknown)

		var buf bytes.Buffer
		reportError(&buf, err)
		assert.Contains(t, buf.String(), "UNKNOWN CLASS: Usr")
		assert.Contains(t, buf.String(), "Did you mean: User")
	})
}

func TestSeedAndSearch(t *testing.T) {
	cfg := sqliteConfig(t)

	out, err := run(t, "--config", cfg, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ seeded 3 IndexWeights documents into indexweights")
	assert.Contains(t, out, "✓ seeded 1 Alias documents into alias")
	assert.Contains(t, out, "✓ seeded 2 User documents into users")
	assert.Contains(t, out, "6 documents in total")
	assert.Regexp(t, `IndexWeights\s+create\s+ok\s+3`, out)

	t.Run("ranked by weighted score", func(t *testing.T) {
		out, err := run(t, "--config", cfg, "search", "mongodb")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.GreaterOrEqual(t, len(lines), 4)
		assert.True(t, strings.HasPrefix(lines[0], "Score"))
		assert.True(t, strings.HasPrefix(lines[2], "17.00"), lines[2])
		assert.Contains(t, lines[2], "MongoDB-native")
		assert.True(t, strings.HasPrefix(lines[3], "12.00"), lines[3])
		assert.Contains(t, lines[3], "Mongoose is a Module")
		assert.NotContains(t, out, "Typegoose is a Module")
	})

	t.Run("negated term", func(t *testing.T) {
		out, err := run(t, "--config", cfg, "search", "--", "mongoose", "-js")
		require.NoError(t, err)
		assert.Contains(t, out, "Typegoose is a Module")
		assert.Contains(t, out, "typegoose, ts, nodejs, mongoose")
		assert.NotContains(t, out, "Mongoose is a Module")
	})

	t.Run("limit", func(t *testing.T) {
		out, err := run(t, "--config", cfg, "search", "nodejs", "--limit", "1")
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(out, "NodeJS module for MongoDB")+strings.Count(out, "TypeScript Module"))
	})

	t.Run("no match", func(t *testing.T) {
		out, err := run(t, "--config", cfg, "search", "postgres")
		require.NoError(t, err)
		assert.Contains(t, out, `no IndexWeights documents match "postgres"`)
	})

	t.Run("class without text index", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "search", "--class", "Alias", "hello")
		assert.ErrorIs(t, err, driver.ErrNoTextIndex)
	})

	t.Run("reset", func(t *testing.T) {
		out, err := run(t, "--config", cfg, "seed", "--reset")
		require.NoError(t, err)
		assert.Contains(t, out, "removed 3 IndexWeights documents")
		assert.Contains(t, out, "removed 2 User documents")
	})
}

func TestCreateCommand(t *testing.T) {
	cfg := memoryConfig(t)

	t.Run("virtual setter and array", func(t *testing.T) {
		out, err := run(t, "--config", cfg, "create", "User",
			"--set", "fullName=Ada Lovelace",
			"--set", "age=36",
			"--set", "languages=english, french",
			"--set", "job.title=Analyst")
		require.NoError(t, err)
		assert.Contains(t, out, "✓ created User ")

		var created map[string]interface{}
		require.NoError(t, yaml.Unmarshal([]byte(out[strings.Index(out, "\n")+1:]), &created))
		assert.Equal(t, "Ada", created["firstName"])
		assert.Equal(t, "Lovelace", created["lastName"])
		assert.Equal(t, "Ada Lovelace", created["fullName"])
		assert.Equal(t, 36, created["age"])
		assert.Equal(t, []interface{}{"english", "french"}, created["languages"])
		assert.Equal(t, map[string]interface{}{"title": "Analyst"}, created["job"])
		assert.NotEmpty(t, created["_id"])
	})

	t.Run("discriminator class", func(t *testing.T) {
		out, err := run(t, "--config", cfg, "create", "Car", "--set", "make= Volvo ", "--set", "plate=abc123")
		require.NoError(t, err)
		assert.Contains(t, out, "make: Volvo")
		assert.Contains(t, out, "plate: ABC123")
		assert.Contains(t, out, "__t: Car")
		assert.Contains(t, out, "doors: 4")
	})

	t.Run("validation failure", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "create", "User", "--set", "firstName=Ada", "--set", "age=200")
		require.Error(t, err)
		assert.True(t, model.IsValidationFailed(err))

		var buf bytes.Buffer
		reportError(&buf, err)
		assert.Contains(t, buf.String(), "VALIDATION FAILED: User")
		assert.Contains(t, buf.String(), "age: must be at most 150")
		assert.Contains(t, buf.String(), "lastName: is required")
	})

	t.Run("invalid assignment", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "create", "User", "--set", "firstName")
		assert.ErrorContains(t, err, `invalid assignment "firstName"`)
	})

	t.Run("unknown path", func(t *testing.T) {
		_, err := run(t, "--config", cfg, "create", "User", "--set", "nickname=x")
		assert.Error(t, err)
	})
}

func TestDropCommand(t *testing.T) {
	cfg := sqliteConfig(t)

	_, err := run(t, "--config", cfg, "seed")
	require.NoError(t, err)
	_, err = run(t, "--config", cfg, "create", "Car", "--set", "make=Volvo")
	require.NoError(t, err)

	out, err := run(t, "--config", cfg, "drop", "IndexWeights", "Car", "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ dropped indexweights")
	assert.Contains(t, out, "✓ deleted 1 Car documents")

	out, err = run(t, "--config", cfg, "search", "mongodb")
	require.NoError(t, err)
	assert.Contains(t, out, "no IndexWeights documents match")

	_, err = run(t, "--config", cfg, "drop", "Nope", "--yes")
	var unknown *unknownClassError
	assert.ErrorAs(t, err, &unknown)
}

func TestOpenSessionFailure(t *testing.T) {
	cfg := writeConfig(t, "store:\n  kind: redis\nredis:\n  addr: 127.0.0.1:1\nlog:\n  level: error\n")
	_, err := run(t, "--config", cfg, "seed")
	assert.ErrorContains(t, err, "failed to open redis store")
}

func TestParseAssignments(t *testing.T) {
	fields, err := parseAssignments(fixtures.User, []string{
		"firstName=Ada",
		"languages=",
		"previousCars=c1,c2",
		"note=a=b",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", fields["firstName"])
	assert.Equal(t, []string{}, fields["languages"])
	assert.Equal(t, []string{"c1", "c2"}, fields["previousCars"])
	assert.Equal(t, "a=b", fields["note"])

	_, err = parseAssignments(fixtures.User, []string{"=x"})
	assert.Error(t, err)
}
