package commands

import (
	"fmt"

	"github.com/AlecAivazis/survey/v2"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmodel/internal/cli/ui"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
)

func newDropCommand(opts *globalOptions) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "drop <class>...",
		Short: "Remove the documents of one or more classes",
		Long: `Drop the collection of each class together with its indexes. Indexes
are created again the next time the class is used.

Discriminator classes share their base collection, so only the documents
of that class are deleted.`,
		Example: `  docmodel drop IndexWeights
  docmodel drop Car Motorcycle --yes`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			out := cmd.OutOrStdout()
			for _, name := range args {
				m, err := s.model(ctx, name)
				if err != nil {
					return err
				}

				if !yes {
					confirmed := false
					prompt := &survey.Confirm{
						Message: fmt.Sprintf("Remove every %s document from %s?", name, m.Collection().Name()),
					}
					if err := survey.AskOne(prompt, &confirmed); err != nil {
						return err
					}
					if !confirmed {
						fmt.Fprintf(out, "skipped %s\n", name)
						continue
					}
				}

				if m.IsDiscriminator() {
					n, err := m.DeleteMany(ctx, driver.Filter{})
					if err != nil {
						return fmt.Errorf("failed to delete %s documents: %w", name, err)
					}
					ui.WriteSuccess(out, fmt.Sprintf("deleted %d %s documents", n, name), color.NoColor)
					continue
				}

				if err := m.Collection().Drop(ctx); err != nil {
					return fmt.Errorf("failed to drop %s: %w", m.Collection().Name(), err)
				}
				ui.WriteSuccess(out, fmt.Sprintf("dropped %s", m.Collection().Name()), color.NoColor)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
