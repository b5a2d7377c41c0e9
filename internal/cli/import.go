package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwaltman/schedstore/internal/exchange"
	"github.com/mwaltman/schedstore/internal/reconcile"
)

// ImportResult is the JSON shape of an import summary.
type ImportResult struct {
	SchedulesCreated int      `json:"schedules_created"`
	SchedulesUpdated int      `json:"schedules_updated"`
	SeriesCreated    int      `json:"series_created"`
	SeriesUpdated    int      `json:"series_updated"`
	AuditAppended    int      `json:"audit_appended"`
	Rejected         int      `json:"rejected"`
	Warnings         []string `json:"warnings,omitempty"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	var mergeDrafts bool

	cmd := &cobra.Command{
		Use:   "import <payload.json>",
		Short: "Merge a backup payload into the database",
		Long: `Merge a backup payload into the database.

Schedules are matched by application number, never by identity; series
items ride their schedule's resolved identity. Records that fail
validation are skipped and reported, the rest import. A payload that
fails structural validation aborts without touching the database.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(rootOpts, args[0], mergeDrafts, cmd)
		},
	}

	cmd.Flags().BoolVar(&mergeDrafts, "merge-drafts-by-title", false,
		"merge incoming drafts into existing drafts on an unambiguous title match")

	return cmd
}

func runImport(opts *RootOptions, path string, mergeDrafts bool, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		_ = formatter.Error(ErrCodePayload, fmt.Sprintf("cannot read payload: %v", err), nil)
		return WrapExitError(ExitCommandError, "cannot read payload", err)
	}

	s, err := openStore(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer s.Close()

	formatter.VerboseLog("importing %s into %s", path, opts.DBPath)

	imp := reconcile.NewImporter(s, reconcile.Options{
		MergeDraftsByTitle: mergeDrafts,
		Logger:             opts.logger(),
	})
	summary, err := imp.Import(cmd.Context(), data)
	if err != nil {
		var structural *exchange.StructuralError
		if errors.As(err, &structural) {
			_ = formatter.Error(ErrCodePayload, "payload failed structural validation", structural.Problems)
			return WrapExitError(ExitFailure, "payload failed structural validation", err)
		}
		// Systemic storage failure mid-import: report what completed.
		if summary != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), importResult(summary))
		} else {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		}
		return WrapExitError(ExitFailure, "import aborted", err)
	}

	return outputImportSummary(formatter, summary)
}

func importResult(summary *reconcile.Summary) ImportResult {
	result := ImportResult{
		SchedulesCreated: summary.SchedulesCreated,
		SchedulesUpdated: summary.SchedulesUpdated,
		SeriesCreated:    summary.SeriesCreated,
		SeriesUpdated:    summary.SeriesUpdated,
		AuditAppended:    summary.AuditAppended,
		Rejected:         summary.Rejected(),
	}
	for _, w := range summary.Warnings {
		result.Warnings = append(result.Warnings, w.String())
	}
	return result
}

func outputImportSummary(formatter *OutputFormatter, summary *reconcile.Summary) error {
	if formatter.Format == "json" {
		return formatter.Success(importResult(summary))
	}

	fmt.Fprintf(formatter.Writer, "Schedules: %d created, %d updated\n",
		summary.SchedulesCreated, summary.SchedulesUpdated)
	fmt.Fprintf(formatter.Writer, "Series items: %d created, %d updated\n",
		summary.SeriesCreated, summary.SeriesUpdated)
	fmt.Fprintf(formatter.Writer, "Audit events appended: %d\n", summary.AuditAppended)

	if len(summary.Warnings) > 0 {
		fmt.Fprintf(formatter.Writer, "\n%d record(s) need attention:\n", len(summary.Warnings))
		for _, w := range summary.Warnings {
			fmt.Fprintf(formatter.Writer, "  %s\n", w)
		}
	}
	if rejected := summary.Rejected(); rejected > 0 {
		fmt.Fprintf(formatter.Writer, "\n✗ %d record(s) rejected\n", rejected)
	} else {
		fmt.Fprintln(formatter.Writer, "✓ Import complete")
	}
	return nil
}
