// Package model defines the entities of the records inventory:
// retention schedules, the series items that belong to them, and the
// append-only audit events describing every mutation.
//
// Identity is split two ways:
//
//   - Internal identity (ScheduleID, SeriesID): opaque store-minted
//     handles, never meaningful outside the store that minted them and
//     never portable between stores.
//   - Business key: the application number for formalized schedules
//     (pattern NN-NNN), and (schedule, item number) for series items.
//     These are the only keys used for cross-store matching.
//
// The package also provides the pure validators used before any record
// is admitted to the store, and the canonical JSON snapshot encoding
// used for audit payloads and change detection. Validators collect all
// violations rather than stopping at the first, so callers can report
// a complete list per record.
package model
