package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwaltman/schedstore/internal/model"
)

// ScheduleRow is the JSON row shape of the schedule listing.
type ScheduleRow struct {
	ID                string `json:"id"`
	ApplicationNumber string `json:"application_number,omitempty"`
	Title             string `json:"title"`
	ApprovalStatus    string `json:"approval_status"`
	SeriesCount       int    `json:"series_count"`
}

// SeriesRow is the JSON row shape of the series listing.
type SeriesRow struct {
	ID         string `json:"id"`
	ItemNumber string `json:"item_number"`
	Title      string `json:"title"`
	Permanent  bool   `json:"retention_is_permanent"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:           "list [schedule-id]",
		Short:         "List schedules, or the series items of one schedule",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				return runListSeries(rootOpts, args[0], cmd)
			}
			return runListSchedules(rootOpts, status, cmd)
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "only schedules with this approval status")

	return cmd
}

func runListSchedules(opts *RootOptions, status string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if status != "" && !model.ValidStatuses[model.ApprovalStatus(status)] {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("unknown approval status %q", status), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown approval status %q", status))
	}

	s, err := openStore(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer s.Close()

	schedules, err := s.Schedules(cmd.Context())
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "list failed", err)
	}

	rows := []ScheduleRow{}
	for _, sch := range schedules {
		if status != "" && string(sch.ApprovalStatus) != status {
			continue
		}
		items, err := s.SeriesForSchedule(cmd.Context(), sch.ID)
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "list failed", err)
		}
		row := ScheduleRow{
			ID:             string(sch.ID),
			Title:          sch.Title,
			ApprovalStatus: string(sch.ApprovalStatus),
			SeriesCount:    len(items),
		}
		if sch.ApplicationNumber != nil {
			row.ApplicationNumber = *sch.ApplicationNumber
		}
		rows = append(rows, row)
	}

	if opts.Format == "json" {
		return formatter.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No schedules.")
		return nil
	}
	for _, row := range rows {
		number := row.ApplicationNumber
		if number == "" {
			number = "(draft)"
		}
		fmt.Fprintf(formatter.Writer, "%-8s %-11s %-40s %d series\n",
			number, row.ApprovalStatus, row.Title, row.SeriesCount)
	}
	return nil
}

func runListSeries(opts *RootOptions, scheduleID string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	s, err := openStore(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer s.Close()

	sch, err := resolveSchedule(cmd, s, scheduleID)
	if err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("schedule %q not found", scheduleID), nil)
		return WrapExitError(ExitFailure, "schedule not found", err)
	}

	items, err := s.SeriesForSchedule(cmd.Context(), sch.ID)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "list failed", err)
	}

	rows := []SeriesRow{}
	for _, item := range items {
		rows = append(rows, SeriesRow{
			ID:         string(item.ID),
			ItemNumber: item.ItemNumber,
			Title:      item.Title,
			Permanent:  item.RetentionIsPermanent,
		})
	}

	if opts.Format == "json" {
		return formatter.Success(rows)
	}
	if len(rows) == 0 {
		fmt.Fprintln(formatter.Writer, "No series items.")
		return nil
	}
	for _, row := range rows {
		mark := ""
		if row.Permanent {
			mark = " [permanent]"
		}
		fmt.Fprintf(formatter.Writer, "%-6s %s%s\n", row.ItemNumber, row.Title, mark)
	}
	return nil
}
