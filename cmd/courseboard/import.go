package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conorfennell/courseboard/internal/importer"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import [source...]",
		Short: "Import courses from local directories or git repositories",
		Long: `Import courses from definition files (*.md) found in the given sources,
or in the sources listed under import.sources when none are given.
Courses already in the catalog are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			sources := args
			if len(sources) == 0 {
				sources = a.cfg.Import.Sources
			}
			if len(sources) == 0 {
				return fmt.Errorf("no import sources given or configured")
			}

			report := importer.New(a.db, a.cfg.Import.ReposDir, a.log).Run(cmd.Context(), sources)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d new courses from %d sources, %d skipped, %d errors.\n",
				report.Added, report.Sources, report.Skipped, report.Errors)
			if report.Errors > 0 {
				return fmt.Errorf("import finished with %d errors", report.Errors)
			}
			return nil
		},
	}
}
