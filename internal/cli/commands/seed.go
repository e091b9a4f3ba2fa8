package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmodel/internal/cli/ui"
	"github.com/conduit-lang/docmodel/internal/fixtures"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
)

func newSeedCommand(opts *globalOptions) *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample documents into the configured store",
		Long: `Insert the sample IndexWeights, Alias and User documents through the
model layer, so defaults, transforms, validation and hooks apply.

Documents get new identifiers on every run. Use --reset to delete the
existing documents of the seeded classes first.`,
		Example: `  # Seed a sqlite file
  DOCMODEL_STORE_KIND=sql DOCMODEL_STORE_URL=dev.db docmodel seed --reset`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			out := cmd.OutOrStdout()
			total := 0
			for _, name := range fixtures.SeedOrder {
				m, err := s.model(ctx, name)
				if err != nil {
					return err
				}

				if reset {
					n, err := m.DeleteMany(ctx, driver.Filter{})
					if err != nil {
						return fmt.Errorf("failed to reset %s: %w", name, err)
					}
					if n > 0 {
						fmt.Fprintf(out, "removed %d %s documents\n", n, name)
					}
				}

				for i, fields := range fixtures.Seed[name] {
					if _, err := m.Create(ctx, fields); err != nil {
						return fmt.Errorf("failed to seed %s #%d: %w", name, i+1, err)
					}
				}
				total += len(fixtures.Seed[name])
				ui.WriteSuccess(out, fmt.Sprintf("seeded %d %s documents into %s",
					len(fixtures.Seed[name]), name, m.Collection().Name()), color.NoColor)
			}

			fmt.Fprintf(out, "%d documents in total\n", total)
			return s.printMetrics(out)
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "delete existing documents of the seeded classes first")
	return cmd
}
