// Package commands implements the docmodel command line tool
package commands

import (
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/conduit-lang/docmodel/internal/cli/ui"
	"github.com/conduit-lang/docmodel/internal/odm/model"
)

var (
	// Version information - set at build time
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
	GoVersion = "unknown"
)

// globalOptions holds the persistent flags shared by every subcommand
type globalOptions struct {
	configPath string
	noColor    bool
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "docmodel",
		Short: "Schema-driven document models over memory, Redis and SQL stores",
		Long: color.CyanString(`docmodel - document models for Go

Declares document classes with typed fields, validators, virtuals,
weighted text indexes and lifecycle hooks, and maps them onto a
document store.

Stores:
  • memory (in-process)
  • redis
  • sql (sqlite3, pgx, postgres)`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to docmodel.yml (default ./docmodel.yml)")
	rootCmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newSchemaCommand(opts))
	rootCmd.AddCommand(newSeedCommand(opts))
	rootCmd.AddCommand(newSearchCommand(opts))
	rootCmd.AddCommand(newCreateCommand(opts))
	rootCmd.AddCommand(newDropCommand(opts))

	return rootCmd
}

// NewVersionCommand creates the version command
func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  "Display the docmodel version, Git commit, build date, and Go version",
		Run: func(cmd *cobra.Command, args []string) {
			goVer := GoVersion
			if goVer == "unknown" {
				goVer = runtime.Version()
			}

			table := ui.NewKeyValueTable(cmd.OutOrStdout(), color.NoColor)
			table.AddRow("docmodel version", Version)
			table.AddRow("Git commit", GitCommit)
			table.AddRow("Build date", BuildDate)
			table.AddRow("Go version", goVer)
			table.Render()
		},
	}
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
		return err
	}
	return nil
}

// reportError renders command failures, with field details for validation
// errors and suggestions for unknown class names
func reportError(w io.Writer, err error) {
	var unknown *unknownClassError
	if errors.As(err, &unknown) {
		fmt.Fprint(w, ui.UnknownClassError(unknown.name, unknown.known, color.NoColor))
		return
	}
	if verrs, ok := model.ValidationErrors(err); ok {
		fmt.Fprint(w, ui.ValidationError(verrs.Class, verrs.Fields, verrs.FieldNames(), color.NoColor))
		return
	}
	ui.WriteError(w, ui.ErrorOptions{Problem: err.Error(), NoColor: color.NoColor})
}
