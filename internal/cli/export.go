package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mwaltman/schedstore/internal/exchange"
	"github.com/mwaltman/schedstore/internal/model"
	"github.com/mwaltman/schedstore/internal/reconcile"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		outPath      string
		statuses     []string
		agencyName   string
		agencyAbbrev string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the database content as a backup payload",
		Long: `Write the database content as a backup payload.

The payload is the same shape import consumes, so an unfiltered export
re-imported into the same database changes nothing. With --status the
export carries only matching schedules, their series items, and the
audit history of the included records.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(rootOpts, outPath, statuses, exchange.Agency{
				Name:   agencyName,
				Abbrev: agencyAbbrev,
			}, cmd)
		},
	}

	cmd.Flags().StringVarP(&outPath, "out", "o", "", "output file (default stdout)")
	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only schedules with these approval statuses")
	cmd.Flags().StringVar(&agencyName, "agency-name", "", "agency name recorded in the payload")
	cmd.Flags().StringVar(&agencyAbbrev, "agency-abbrev", "", "agency abbreviation recorded in the payload")

	return cmd
}

func runExport(opts *RootOptions, outPath string, statuses []string, agency exchange.Agency, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	filter := reconcile.ExportFilter{}
	for _, raw := range statuses {
		status := model.ApprovalStatus(raw)
		if !model.ValidStatuses[status] {
			_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("unknown approval status %q", raw), nil)
			return NewExitError(ExitCommandError, fmt.Sprintf("unknown approval status %q", raw))
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	s, err := openStore(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer s.Close()

	payload, err := reconcile.NewExporter(s, opts.logger()).Export(cmd.Context(), agency, filter)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "export failed", err)
	}

	data, err := payload.Marshal()
	if err != nil {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "export failed", err)
	}

	if outPath == "" {
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	}
	if err := os.WriteFile(outPath, data, 0o644); err != nil {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("cannot write %s: %v", outPath, err), nil)
		return WrapExitError(ExitCommandError, "cannot write output file", err)
	}

	formatter.VerboseLog("wrote %d schedules, %d series items, %d audit events",
		len(payload.Schedules), len(payload.SeriesItems), len(payload.AuditEvents))
	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"file":         outPath,
			"schedules":    len(payload.Schedules),
			"series_items": len(payload.SeriesItems),
			"audit_events": len(payload.AuditEvents),
		})
	}
	fmt.Fprintf(formatter.Writer, "✓ Exported %d schedule(s), %d series item(s), %d audit event(s) to %s\n",
		len(payload.Schedules), len(payload.SeriesItems), len(payload.AuditEvents), outPath)
	return nil
}
