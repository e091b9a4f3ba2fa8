package commands

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/conduit-lang/docmodel/internal/cli/ui"
	"github.com/conduit-lang/docmodel/internal/odm/document"
	"github.com/conduit-lang/docmodel/internal/odm/schema"
)

func newCreateCommand(opts *globalOptions) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "create <class>",
		Short: "Create a document",
		Long: `Create and save a document of a class. Values are given with --set
path=value; without any --set the fields are prompted for.

Array values are comma separated. Paths may name virtuals with a setter
(fullName) and nested keys of map fields (job.title).`,
		Example: `  docmodel create User --set fullName="Ada Lovelace" --set age=36
  docmodel create Car --set make=Volvo --set plate=abc123`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			m, err := s.model(ctx, args[0])
			if err != nil {
				return err
			}

			var fields map[string]interface{}
			if len(sets) > 0 {
				fields, err = parseAssignments(m.Schema(), sets)
			} else {
				fields, err = promptFields(m.Schema())
			}
			if err != nil {
				return err
			}

			doc, err := m.Create(ctx, fields)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			ui.WriteSuccess(out, fmt.Sprintf("created %s %s", m.Name(), doc.ID()), color.NoColor)
			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			if err := enc.Encode(doc.ToObject(document.WithVirtuals())); err != nil {
				return fmt.Errorf("failed to encode document: %w", err)
			}
			if err := enc.Close(); err != nil {
				return err
			}
			return s.printMetrics(out)
		},
	}

	cmd.Flags().StringArrayVar(&sets, "set", nil, "assign a value, path=value (repeatable)")
	return cmd
}

// parseAssignments turns path=value pairs into document fields
func parseAssignments(desc *schema.Description, sets []string) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(sets))
	for _, s := range sets {
		path, value, ok := strings.Cut(s, "=")
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid assignment %q, expected path=value", s)
		}
		fields[path] = inputValue(desc, path, value)
	}
	return fields, nil
}

// inputValue splits array input on commas; everything else is left to the
// field cast
func inputValue(desc *schema.Description, path, value string) interface{} {
	f, ok := desc.Field(desc.ResolvePath(path))
	if !ok || f.Type != schema.TypeArray {
		return value
	}
	if strings.TrimSpace(value) == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// promptFields asks for every stored field the user can set. Empty answers
// leave the field unset.
func promptFields(desc *schema.Description) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	for _, f := range desc.Fields() {
		if desc.IsReserved(f.Name) || f.Type == schema.TypeMap || f.Type == schema.TypeMixed {
			continue
		}
		if desc.Timestamps() && (f.Name == schema.CreatedAtKey || f.Name == schema.UpdatedAtKey) {
			continue
		}

		message := fmt.Sprintf("%s (%s):", f.Name, f.TypeName())
		switch {
		case f.Type == schema.TypeBoolean:
			def, _ := f.Default.(bool)
			var answer bool
			if err := survey.AskOne(&survey.Confirm{Message: message, Default: def}, &answer); err != nil {
				return nil, err
			}
			fields[f.Name] = answer

		case len(f.Enum) > 0 && f.Type == schema.TypeArray:
			var answer []string
			if err := survey.AskOne(&survey.MultiSelect{Message: message, Options: f.Enum}, &answer); err != nil {
				return nil, err
			}
			if len(answer) > 0 {
				fields[f.Name] = answer
			}

		case len(f.Enum) > 0:
			options := append([]string{""}, f.Enum...)
			var answer string
			if err := survey.AskOne(&survey.Select{Message: message, Options: options}, &answer); err != nil {
				return nil, err
			}
			if answer != "" {
				fields[f.Name] = answer
			}

		default:
			prompt := &survey.Input{Message: message}
			if def, ok := f.DefaultValue(); ok {
				prompt.Default = fmt.Sprint(def)
			}
			var validators []survey.Validator
			if f.Required {
				validators = append(validators, survey.Required)
			}
			var answer string
			if err := survey.AskOne(prompt, &answer, survey.WithValidator(survey.ComposeValidators(validators...))); err != nil {
				return nil, err
			}
			if answer != "" {
				fields[f.Name] = inputValue(desc, f.Name, answer)
			}
		}
	}
	return fields, nil
}
