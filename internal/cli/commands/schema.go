package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/docmodel/internal/cli/ui"
	"github.com/conduit-lang/docmodel/internal/fixtures"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

// classDoc is the printable form of a compiled class
type classDoc struct {
	Name       string         `yaml:"name" json:"name"`
	Collection string         `yaml:"collection" json:"collection"`
	Extends    string         `yaml:"extends,omitempty" json:"extends,omitempty"`
	Fields     []fieldDoc     `yaml:"fields" json:"fields"`
	Virtuals   []string       `yaml:"virtuals,omitempty" json:"virtuals,omitempty"`
	Indexes    []indexDoc     `yaml:"indexes,omitempty" json:"indexes,omitempty"`
	TextIndex  map[string]int `yaml:"textIndex,omitempty" json:"textIndex,omitempty"`
	Timestamps bool           `yaml:"timestamps,omitempty" json:"timestamps,omitempty"`
	VersionKey string         `yaml:"versionKey" json:"versionKey"`
}

type fieldDoc struct {
	Name     string      `yaml:"name" json:"name"`
	Type     string      `yaml:"type" json:"type"`
	Required bool        `yaml:"required,omitempty" json:"required,omitempty"`
	Unique   bool        `yaml:"unique,omitempty" json:"unique,omitempty"`
	Hidden   bool        `yaml:"hidden,omitempty" json:"hidden,omitempty"`
	Alias    string      `yaml:"alias,omitempty" json:"alias,omitempty"`
	Default  interface{} `yaml:"default,omitempty" json:"default,omitempty"`
	Enum     []string    `yaml:"enum,omitempty" json:"enum,omitempty"`
}

type indexDoc struct {
	Name   string   `yaml:"name" json:"name"`
	Keys   []string `yaml:"keys" json:"keys"`
	Unique bool     `yaml:"unique,omitempty" json:"unique,omitempty"`
	Sparse bool     `yaml:"sparse,omitempty" json:"sparse,omitempty"`
}

// describeClass builds the printable form of desc. Discriminator classes
// report the collection of their base.
func describeClass(desc *schema.Description, shared map[string]string) classDoc {
	collection := desc.Collection()
	if c, ok := shared[desc.Name()]; ok {
		collection = c
	}
	doc := classDoc{
		Name:       desc.Name(),
		Collection: collection,
		Timestamps: desc.Timestamps(),
		VersionKey: desc.VersionKey(),
	}
	if base := desc.Base(); base != nil {
		doc.Extends = base.Name()
	}

	for _, f := range desc.Fields() {
		fd := fieldDoc{
			Name:     f.Name,
			Type:     f.TypeName(),
			Required: f.Required,
			Unique:   f.Unique,
			Hidden:   f.Hidden,
			Alias:    f.Alias,
			Default:  f.Default,
			Enum:     f.Enum,
		}
		doc.Fields = append(doc.Fields, fd)
	}

	for _, v := range desc.Virtuals() {
		if !v.IsAlias() {
			doc.Virtuals = append(doc.Virtuals, v.Name)
		}
	}

	for _, idx := range desc.Indexes() {
		id := indexDoc{Name: idx.Name, Unique: idx.Unique, Sparse: idx.Sparse}
		for _, k := range idx.Keys {
			id.Keys = append(id.Keys, fmt.Sprintf("%s:%d", k.Field, k.Direction))
		}
		doc.Indexes = append(doc.Indexes, id)
	}

	if text := desc.TextIndex(); text != nil {
		doc.TextIndex = text.WeightMap()
	}
	return doc
}

func newSchemaCommand(opts *globalOptions) *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "schema [class...]",
		Short: "Describe the registered document classes",
		Long: `Print the compiled form of the registered classes: fields with their
types and constraints, virtuals, indexes and text index weights.

Without arguments every class is printed.`,
		Example: `  # Table of every class
  docmodel schema

  # One class as YAML
  docmodel schema User --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			registry := fixtures.Registry()
			names := args
			if len(names) == 0 {
				names = registry.Names()
			}

			shared := make(map[string]string)
			for base, children := range fixtures.Discriminators() {
				root, err := lookupClass(registry, base)
				if err != nil {
					return err
				}
				for _, child := range children {
					shared[child.Name()] = root.Collection()
				}
			}

			docs := make([]classDoc, 0, len(names))
			for _, name := range names {
				desc, err := lookupClass(registry, name)
				if err != nil {
					return err
				}
				docs = append(docs, describeClass(desc, shared))
			}

			out := cmd.OutOrStdout()
			switch format {
			case "table":
				renderClasses(out, docs)
				return nil
			case "yaml":
				enc := yaml.NewEncoder(out)
				enc.SetIndent(2)
				if err := enc.Encode(docs); err != nil {
					return fmt.Errorf("failed to encode schema: %w", err)
				}
				return enc.Close()
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(docs)
			default:
				return fmt.Errorf("unknown format %q (expected table, yaml or json)", format)
			}
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, yaml or json")
	return cmd
}

func renderClasses(w io.Writer, docs []classDoc) {
	for i, doc := range docs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		ui.Header(w, doc.Name, color.NoColor)

		info := ui.NewKeyValueTable(w, color.NoColor)
		info.AddRow("collection", doc.Collection)
		if doc.Extends != "" {
			info.AddRow("extends", doc.Extends)
		}
		if len(doc.Virtuals) > 0 {
			info.AddRow("virtuals", strings.Join(doc.Virtuals, ", "))
		}
		for _, idx := range doc.Indexes {
			info.AddRow("index", indexSummary(idx))
		}
		if len(doc.TextIndex) > 0 {
			info.AddRow("text index", textSummary(doc))
		}
		info.Render()
		fmt.Fprintln(w)

		table := ui.NewTable(w, color.NoColor, "Field", "Type", "Flags")
		for _, f := range doc.Fields {
			table.AddRow(f.Name, f.Type, fieldFlags(f))
		}
		table.Render()
	}
}

func fieldFlags(f fieldDoc) string {
	var flags []string
	if f.Required {
		flags = append(flags, "required")
	}
	if f.Unique {
		flags = append(flags, "unique")
	}
	if f.Hidden {
		flags = append(flags, "hidden")
	}
	if f.Alias != "" {
		flags = append(flags, "alias="+f.Alias)
	}
	if f.Default != nil {
		flags = append(flags, fmt.Sprintf("default=%v", f.Default))
	}
	if len(f.Enum) > 0 {
		flags = append(flags, "enum="+strings.Join(f.Enum, "|"))
	}
	return strings.Join(flags, " ")
}

func indexSummary(idx indexDoc) string {
	s := fmt.Sprintf("%s (%s)", idx.Name, strings.Join(idx.Keys, ", "))
	if idx.Unique {
		s += " unique"
	}
	if idx.Sparse {
		s += " sparse"
	}
	return s
}

// textSummary lists the text index weights in field order
func textSummary(doc classDoc) string {
	var parts []string
	for _, f := range doc.Fields {
		if w, ok := doc.TextIndex[f.Name]; ok {
			parts = append(parts, fmt.Sprintf("%s:%d", f.Name, w))
		}
	}
	return strings.Join(parts, ", ")
}
