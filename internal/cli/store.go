package cli

import (
	"github.com/spf13/cobra"

	"github.com/mwaltman/schedstore/internal/model"
	"github.com/mwaltman/schedstore/internal/store"
)

// openStore opens the database named by --db. A missing or unopenable
// path is a command error, not an operation failure.
func openStore(opts *RootOptions) (*store.Store, error) {
	if opts.DBPath == "" {
		return nil, NewExitError(ExitCommandError, "missing required flag --db")
	}
	s, err := store.Open(opts.DBPath, store.WithActor(opts.actor()))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return s, nil
}

// resolveSchedule looks a schedule up by internal identity first, then
// by application number, so commands accept either.
func resolveSchedule(cmd *cobra.Command, s *store.Store, ref string) (model.Schedule, error) {
	sch, err := s.GetSchedule(cmd.Context(), model.ScheduleID(ref))
	if err == nil {
		return sch, nil
	}
	return s.GetScheduleByNumber(cmd.Context(), ref)
}
