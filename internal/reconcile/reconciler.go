package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mwaltman/schedstore/internal/exchange"
	"github.com/mwaltman/schedstore/internal/model"
	"github.com/mwaltman/schedstore/internal/store"
)

// Options tunes an import run.
type Options struct {
	// MergeDraftsByTitle merges incoming drafts into existing drafts
	// on an unambiguous title match. Off by default.
	MergeDraftsByTitle bool

	// Logger receives stage-boundary progress. Defaults to slog's
	// default logger.
	Logger *slog.Logger
}

// Importer merges backup payloads into a store.
type Importer struct {
	store *store.Store
	opts  Options
	log   *slog.Logger
}

// NewImporter creates an importer over the given store.
func NewImporter(s *store.Store, opts Options) *Importer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Importer{store: s, opts: opts, log: log}
}

// Import merges one payload into the store and returns the summary.
//
// A structural failure aborts before any mutation and the store is
// untouched. Past that point the import is partial-success: rejected
// records are reported in the summary and the rest proceed. A non-nil
// error alongside a non-nil summary means the run was cut short
// (cancellation or the storage medium failing); the summary still
// reports everything completed before the stop.
func (imp *Importer) Import(ctx context.Context, data []byte) (*Summary, error) {
	// Cancellation is free until structural validation completes;
	// after that the engine finishes the record in flight first.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	doc, err := exchange.DecodeDocument(data)
	if err != nil {
		return nil, err
	}

	imp.log.Info("import starting",
		"schedules", len(doc.Schedules),
		"series_items", len(doc.SeriesItems),
		"audit_events", len(doc.AuditEvents))

	summary := &Summary{}

	batch := imp.decodeSchedules(doc, summary)

	existing, err := imp.store.Schedules(ctx)
	if err != nil {
		return summary, fmt.Errorf("import: read existing schedules: %w", err)
	}

	res := resolve(existing, batch, imp.store.NewID, resolverOptions{
		mergeDraftsByTitle: imp.opts.MergeDraftsByTitle,
	})
	summary.Warnings = append(summary.Warnings, res.Warnings()...)
	imp.log.Debug("identities resolved", "decisions", len(res.Decisions()))

	if err := imp.upsertSchedules(ctx, batch, res, summary); err != nil {
		return summary, err
	}

	seriesIDs, err := imp.upsertSeries(ctx, doc, res, summary)
	if err != nil {
		return summary, err
	}

	if err := imp.appendAudit(ctx, doc, res, seriesIDs, summary); err != nil {
		return summary, err
	}

	imp.log.Info("import complete",
		"schedules_created", summary.SchedulesCreated,
		"schedules_updated", summary.SchedulesUpdated,
		"series_created", summary.SeriesCreated,
		"series_updated", summary.SeriesUpdated,
		"audit_appended", summary.AuditAppended,
		"rejected", summary.Rejected())

	return summary, nil
}

// decodeSchedules turns the raw schedule records into the resolver's
// input batch. Records that fail to decode or fail domain validation
// are warned about and excluded, which later surfaces as referential
// warnings on any series referencing them.
func (imp *Importer) decodeSchedules(doc *exchange.Document, summary *Summary) []incoming {
	var batch []incoming
	for i, raw := range doc.Schedules {
		key := positionalKey(raw, i)

		var sch model.Schedule
		if err := json.Unmarshal(raw, &sch); err != nil {
			summary.warn(WarnValidation, model.KindSchedule, key, "malformed schedule record: %v", err)
			continue
		}

		if errs := model.ValidateSchedule(sch); len(errs) > 0 {
			summary.warn(WarnValidation, model.KindSchedule, scheduleRef(sch, key),
				"invalid schedule: %s", joinValidationErrors(errs))
			continue
		}

		// The incoming identity is payload-local; only the resolver's
		// output decides what identity the record gets here.
		sch.ID = ""
		batch = append(batch, incoming{key: key, schedule: sch})
	}
	return batch
}

// upsertSchedules writes every resolved schedule through the store.
func (imp *Importer) upsertSchedules(ctx context.Context, batch []incoming, res *Resolution, summary *Summary) error {
	for _, in := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}

		d, ok := res.Lookup(in.key)
		if !ok {
			continue
		}
		sch := in.schedule
		sch.ID = d.ID

		_, created, changed, err := imp.store.UpsertSchedule(ctx, sch)
		if err != nil {
			if store.IsUnavailable(err) {
				return fmt.Errorf("import: storage unavailable: %w", err)
			}
			res.MarkFailed(in.key)
			summary.warn(WarnStore, model.KindSchedule, scheduleRef(sch, in.key), "write failed: %v", err)
			continue
		}
		// Every effective write commits exactly one audit event in the
		// same transaction, so the audit counter moves with it. That
		// keeps the summary honest even when a later record aborts the
		// import.
		switch {
		case created:
			summary.SchedulesCreated++
			summary.AuditAppended++
		case changed:
			summary.SchedulesUpdated++
			summary.AuditAppended++
		}
	}
	return nil
}

// upsertSeries rewrites each series item's schedule reference through
// the resolution mapping and writes it by composite key. Returns the
// payload-local series id -> store identity mapping for audit remap.
func (imp *Importer) upsertSeries(ctx context.Context, doc *exchange.Document, res *Resolution, summary *Summary) (map[string]model.SeriesID, error) {
	seriesIDs := make(map[string]model.SeriesID)

	for i, raw := range doc.SeriesItems {
		if err := ctx.Err(); err != nil {
			return seriesIDs, err
		}

		ref := positionalKey(raw, i)
		var item model.SeriesItem
		if err := json.Unmarshal(raw, &item); err != nil {
			summary.warn(WarnValidation, model.KindSeries, ref, "malformed series record: %v", err)
			continue
		}

		// The payload references the schedule by its payload-local
		// key. Rewrite through the resolved mapping; a miss means the
		// schedule was absent or rejected and the item must never be
		// written with a dangling reference.
		originSchedule := string(item.ScheduleID)
		d, ok := res.Lookup(originSchedule)
		if !ok {
			summary.warn(WarnReferential, model.KindSeries, seriesRef(item, ref),
				"schedule reference %q could not be resolved", originSchedule)
			continue
		}
		item.ScheduleID = d.ID

		if errs := model.ValidateSeries(item); len(errs) > 0 {
			summary.warn(WarnValidation, model.KindSeries, seriesRef(item, ref),
				"invalid series item: %s", joinValidationErrors(errs))
			continue
		}

		originID := string(item.ID)
		item.ID = "" // identities are not portable; the store decides

		id, created, changed, err := imp.store.UpsertSeries(ctx, item)
		if err != nil {
			if store.IsUnavailable(err) {
				return seriesIDs, fmt.Errorf("import: storage unavailable: %w", err)
			}
			summary.warn(WarnStore, model.KindSeries, seriesRef(item, ref), "write failed: %v", err)
			continue
		}
		if originID != "" {
			seriesIDs[originID] = id
		}
		switch {
		case created:
			summary.SeriesCreated++
			summary.AuditAppended++
		case changed:
			summary.SeriesUpdated++
			summary.AuditAppended++
		}
	}
	return seriesIDs, nil
}

// appendAudit carries the payload's audit history into the store under
// fresh identities. Entity references are remapped through the import
// mappings where resolvable; events whose tuple already exists in the
// log are recognized as already-present history and skipped, so
// re-importing a store's own backup appends nothing.
func (imp *Importer) appendAudit(ctx context.Context, doc *exchange.Document, res *Resolution, seriesIDs map[string]model.SeriesID, summary *Summary) error {
	for i, raw := range doc.AuditEvents {
		if err := ctx.Err(); err != nil {
			return err
		}

		ref := positionalKey(raw, i)
		var ev model.AuditEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			summary.warn(WarnValidation, "", ref, "malformed audit event: %v", err)
			continue
		}
		if !model.ValidEntityKinds[ev.EntityKind] || !model.ValidAuditActions[ev.Action] {
			summary.warn(WarnValidation, ev.EntityKind, ref,
				"audit event has unknown kind %q or action %q", ev.EntityKind, ev.Action)
			continue
		}

		switch ev.EntityKind {
		case model.KindSchedule:
			if d, ok := res.Lookup(ev.EntityID); ok {
				ev.EntityID = string(d.ID)
			}
		case model.KindSeries:
			if id, ok := seriesIDs[ev.EntityID]; ok {
				ev.EntityID = string(id)
			}
		}
		// Unmapped references stay as opaque historical tokens; they
		// never participate in foreign-key checks.

		appended, err := imp.store.AppendImportedAudit(ctx, ev)
		if err != nil {
			if store.IsUnavailable(err) {
				return fmt.Errorf("import: storage unavailable: %w", err)
			}
			summary.warn(WarnStore, ev.EntityKind, ref, "audit append failed: %v", err)
			continue
		}
		if appended {
			summary.AuditAppended++
		}
	}
	return nil
}

// positionalKey extracts a record's payload-local "_id", falling back
// to its position.
func positionalKey(raw json.RawMessage, i int) string {
	var probe struct {
		ID string `json:"_id"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil && probe.ID != "" {
		return probe.ID
	}
	return fmt.Sprintf("#%d", i)
}

// scheduleRef names a schedule for warnings: business key when it has
// one, payload key otherwise.
func scheduleRef(sch model.Schedule, key string) string {
	if sch.ApplicationNumber != nil {
		return *sch.ApplicationNumber
	}
	if sch.Title != "" {
		return sch.Title
	}
	return key
}

// seriesRef names a series item for warnings.
func seriesRef(item model.SeriesItem, key string) string {
	if item.ItemNumber != "" {
		return fmt.Sprintf("item %s", item.ItemNumber)
	}
	return key
}

func joinValidationErrors(errs []model.ValidationError) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e.Error()
	}
	return out
}
