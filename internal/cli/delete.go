package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mwaltman/schedstore/internal/model"
	"github.com/mwaltman/schedstore/internal/store"
)

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <schedule|series> <id>",
		Short: "Delete one record, recording an audit event",
		Long: `Delete one record, recording an audit event with the record's final
content. A schedule that still has series items is refused; delete the
series items first.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(rootOpts, args[0], args[1], cmd)
		},
	}

	return cmd
}

func runDelete(opts *RootOptions, kindArg, ref string, cmd *cobra.Command) error {
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

	switch kind {
	case model.KindSchedule:
		sch, err := resolveSchedule(cmd, s, ref)
		if err != nil {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("schedule %q not found", ref), nil)
			return WrapExitError(ExitFailure, "schedule not found", err)
		}
		err = s.DeleteSchedule(cmd.Context(), sch.ID)
		if errors.Is(err, store.ErrScheduleInUse) {
			_ = formatter.Error(ErrCodeInUse, "schedule still has series items; delete them first", nil)
			return WrapExitError(ExitFailure, "schedule in use", err)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "delete failed", err)
		}
	case model.KindSeries:
		err := s.DeleteSeries(cmd.Context(), model.SeriesID(ref))
		if errors.Is(err, store.ErrNotFound) {
			_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("series item %q not found", ref), nil)
			return WrapExitError(ExitFailure, "series item not found", err)
		}
		if err != nil {
			_ = formatter.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "delete failed", err)
		}
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]string{"deleted": ref})
	}
	fmt.Fprintf(formatter.Writer, "✓ Deleted %s %s\n", kindArg, ref)
	return nil
}
