package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mwaltman/schedstore/internal/exchange"
	"github.com/mwaltman/schedstore/internal/model"
	"github.com/mwaltman/schedstore/internal/store"
)

// ExportFilter narrows an export. The zero value exports everything.
type ExportFilter struct {
	// Statuses keeps only schedules in one of these approval states.
	Statuses []model.ApprovalStatus

	// ScheduleIDs keeps only the named schedules.
	ScheduleIDs []model.ScheduleID
}

func (f ExportFilter) empty() bool {
	return len(f.Statuses) == 0 && len(f.ScheduleIDs) == 0
}

func (f ExportFilter) admits(sch model.Schedule) bool {
	if len(f.Statuses) > 0 {
		ok := false
		for _, st := range f.Statuses {
			if sch.ApprovalStatus == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if len(f.ScheduleIDs) > 0 {
		ok := false
		for _, id := range f.ScheduleIDs {
			if sch.ID == id {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// Exporter assembles backup payloads from a store.
type Exporter struct {
	store *store.Store
	log   *slog.Logger
}

// NewExporter creates an exporter over the given store.
func NewExporter(s *store.Store, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: s, log: logger}
}

// Export reads the store and assembles a complete payload: every
// admitted schedule, its series items, and the audit history for the
// included entities. An unfiltered export followed by an import into
// the same store is a no-op.
func (e *Exporter) Export(ctx context.Context, agency exchange.Agency, filter ExportFilter) (*exchange.Payload, error) {
	schedules, err := e.store.Schedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: read schedules: %w", err)
	}

	p := &exchange.Payload{
		ExportedAt:  e.store.Now(),
		Version:     exchange.Version,
		Agency:      agency,
		Schedules:   []model.Schedule{},
		SeriesItems: []model.SeriesItem{},
		AuditEvents: []model.AuditEvent{},
	}

	included := make(map[string]bool)
	for _, sch := range schedules {
		if !filter.admits(sch) {
			continue
		}
		p.Schedules = append(p.Schedules, sch)
		included[string(sch.ID)] = true

		items, err := e.store.SeriesForSchedule(ctx, sch.ID)
		if err != nil {
			return nil, fmt.Errorf("export: read series for %s: %w", sch.ID, err)
		}
		for _, item := range items {
			p.SeriesItems = append(p.SeriesItems, item)
			included[string(item.ID)] = true
		}
	}

	events, err := e.store.AuditEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("export: read audit events: %w", err)
	}
	for _, ev := range events {
		// A filtered export carries only the history of what it
		// includes; an unfiltered one carries the whole log, opaque
		// historical references included.
		if !filter.empty() && !included[ev.EntityID] {
			continue
		}
		p.AuditEvents = append(p.AuditEvents, ev)
	}

	e.log.Info("export assembled",
		"schedules", len(p.Schedules),
		"series_items", len(p.SeriesItems),
		"audit_events", len(p.AuditEvents))

	return p, nil
}
