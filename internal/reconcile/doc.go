// Package reconcile implements the import/export engine: merging an
// externally supplied backup payload into the local store, and
// producing the inverse payload on export.
//
// Import runs as a staged pipeline:
//
//	ResolvingIdentities -> UpsertingSchedules -> RemappingSeriesForeignKeys
//	-> UpsertingSeriesItems -> RecordingAudit -> Summarizing
//
// The structural-validation gate at the front is all-or-nothing: a
// payload that fails shape checks aborts with the store untouched.
// Past that gate the policy is partial success: individual records that
// fail domain validation or foreign-key resolution are skipped and
// reported in the summary, never silently dropped, while the rest of
// the payload imports.
//
// Identities are resolved once, fully, before any series item is
// processed. Series items reference schedules only through the
// resolved mapping; an item whose schedule could not be resolved is
// rejected rather than written with a dangling reference. Incoming
// identities of any kind are never reused - the resolver and store
// mint fresh handles, and only the application_number business key
// carries matching semantics across stores.
package reconcile
