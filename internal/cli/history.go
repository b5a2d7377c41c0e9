package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwaltman/schedstore/internal/model"
)

// HistoryRow is the JSON row shape of an entity's audit history.
type HistoryRow struct {
	Seq    int64  `json:"seq"`
	Action string `json:"action"`
	Actor  string `json:"actor"`
	At     string `json:"at"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history <schedule|series> <id>",
		Short: "Show the audit history of one record",
		Long: `Show the audit history of one record, oldest first.

History ordering follows the audit log's logical sequence, not wall
time, so imported history sorts by when it entered this database.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runHistory(opts *RootOptions, kindArg, ref string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	kind := model.EntityKind(kindArg)
	if !model.ValidEntityKinds[kind] {
		_ = formatter.Error(ErrCodeGeneric, fmt.Sprintf("unknown entity kind %q (want schedule or series)", kindArg), nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown entity kind %q", kindArg))
	}

	s, err := openStore(opts)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer s.Close()

	entityID := ref
	if kind == model.KindSchedule {
		if sch, err := resolveSchedule(cmd, s, ref); err == nil {
			entityID = string(sch.ID)
		}
	}

	events, err := s.History(cmd.Context(), kind, entityID)
	if err != nil {
		_ = formatter.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "history failed", err)
	}
	if len(events) == 0 {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("no history for %s %q", kindArg, ref), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("no history for %s %q", kindArg, ref))
	}

	rows := make([]HistoryRow, 0, len(events))
	for _, ev := range events {
		rows = append(rows, HistoryRow{
			Seq:    ev.Seq,
			Action: string(ev.Action),
			Actor:  ev.Actor,
			At:     ev.At.UTC().Format(time.RFC3339),
		})
	}

	if opts.Format == "json" {
		return formatter.Success(rows)
	}
	for _, row := range rows {
		fmt.Fprintf(formatter.Writer, "%6d  %-7s %-12s %s\n", row.Seq, row.Action, row.Actor, row.At)
	}
	return nil
}
