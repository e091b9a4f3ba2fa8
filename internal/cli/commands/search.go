package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmodel/internal/cli/ui"
	"github.com/conduit-lang/docmodel/internal/fixtures"
	"github.com/conduit-lang/docmodel/internal/odm/document"
	"github.com/conduit-lang/docmodel/internal/odm/driver"
	"github.com/conduit-lang/docmodel/internal/odm/model"
)

func newSearchCommand(opts *globalOptions) *cobra.Command {
	var (
		class string
		limit int64
	)

	cmd := &cobra.Command{
		Use:   "search <terms>...",
		Short: "Run a weighted text search",
		Long: `Search a class through its text index and print matches by relevance.

Terms are whitespace separated, "quoted phrases" must appear verbatim and
a leading - excludes documents containing the term.`,
		Example: `  docmodel search mongodb
  docmodel search --class IndexWeights -- mongoose -js`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx, opts)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			m, err := s.model(ctx, class)
			if err != nil {
				return err
			}
			text := m.Schema().TextIndex()
			if text == nil {
				return fmt.Errorf("%s: %w", class, driver.ErrNoTextIndex)
			}

			query := strings.Join(args, " ")
			var queryOpts []model.QueryOption
			if limit > 0 {
				queryOpts = append(queryOpts, model.Limit(limit))
			}
			docs, err := m.Find(ctx, driver.Filter{"$text": driver.Filter{"$search": query}}, queryOpts...)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(docs) == 0 {
				ui.WriteError(out, ui.ErrorOptions{
					Level:   ui.ErrorLevelInfo,
					Problem: fmt.Sprintf("no %s documents match %q", class, query),
					NoColor: color.NoColor,
				})
				return nil
			}

			headers := []string{"Score", "ID"}
			for _, w := range text.Weights {
				headers = append(headers, w.Field)
			}
			table := ui.NewTable(out, color.NoColor, headers...)
			for _, doc := range docs {
				row := []string{fmt.Sprintf("%.2f", doc.TextScore()), doc.ID()}
				for _, w := range text.Weights {
					row = append(row, cellText(doc, w.Field))
				}
				table.AddRow(row...)
			}
			table.Render()
			return s.printMetrics(out)
		},
	}

	cmd.Flags().StringVar(&class, "class", fixtures.IndexWeights.Name(), "class to search")
	cmd.Flags().Int64VarP(&limit, "limit", "n", 0, "maximum number of results")
	return cmd
}

func cellText(doc *document.Document, path string) string {
	switch v := doc.Get(path).(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(v, ", ")
	default:
		return fmt.Sprint(v)
	}
}
