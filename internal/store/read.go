package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwaltman/schedstore/internal/model"
)

const scheduleSelect = `
	SELECT id, application_number, title, approving_body, approval_status, approval_date,
	       retention_statement, notes, pdf_name, pdf_url, pdf_pages, tags, created_at, updated_at
	FROM schedules`

const seriesSelect = `
	SELECT id, schedule_id, item_number, title, description, dates_covered_start,
	       dates_covered_end, open_ended, arrangement, division, contact, location,
	       retention, retention_is_permanent, retention_text, volume, media_types,
	       standard_refs, related_series, legal_hold, audit_hold, records_officer,
	       representative, notes, created_at, updated_at
	FROM series_items`

const auditSelect = `
	SELECT id, seq, entity_kind, entity_id, action, actor, at, payload
	FROM audit_events`

// GetSchedule retrieves a schedule by identity.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetSchedule(ctx context.Context, id model.ScheduleID) (model.Schedule, error) {
	got, err := scanScheduleRow(s.db.QueryRowContext(ctx, scheduleSelect+` WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, fmt.Errorf("schedule %s: %w", id, ErrNotFound)
	}
	return got, err
}

// GetScheduleByNumber retrieves a schedule by its application_number
// business key. Returns ErrNotFound if no schedule carries it.
func (s *Store) GetScheduleByNumber(ctx context.Context, number string) (model.Schedule, error) {
	got, err := scanScheduleRow(s.db.QueryRowContext(ctx, scheduleSelect+` WHERE application_number = ?`, number))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Schedule{}, fmt.Errorf("schedule %q: %w", number, ErrNotFound)
	}
	return got, err
}

// Schedules returns all schedules in deterministic order: formalized
// schedules by application number, then drafts by title, identity as
// the final tiebreak.
//
// Returns an empty slice (not nil) when the store is empty.
func (s *Store) Schedules(ctx context.Context) ([]model.Schedule, error) {
	rows, err := s.db.QueryContext(ctx, scheduleSelect+`
		ORDER BY application_number IS NULL ASC, application_number ASC, title ASC, id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer rows.Close()

	schedules := []model.Schedule{}
	for rows.Next() {
		sch, err := scanScheduleRow(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, sch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

// SeriesForSchedule returns the series items of one schedule as an
// ordered sequence: numeric item-number order where item numbers are
// numeric, lexical otherwise, identity as the final tiebreak.
func (s *Store) SeriesForSchedule(ctx context.Context, id model.ScheduleID) ([]model.SeriesItem, error) {
	rows, err := s.db.QueryContext(ctx, seriesSelect+`
		WHERE schedule_id = ?
		ORDER BY CAST(item_number AS INTEGER) ASC, item_number ASC, id ASC
	`, string(id))
	if err != nil {
		return nil, fmt.Errorf("query series: %w", err)
	}
	defer rows.Close()

	items := []model.SeriesItem{}
	for rows.Next() {
		item, err := scanSeriesRow(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series: %w", err)
	}
	return items, nil
}

// GetSeries retrieves a series item by identity.
// Returns ErrNotFound if it does not exist.
func (s *Store) GetSeries(ctx context.Context, id model.SeriesID) (model.SeriesItem, error) {
	got, err := scanSeriesRow(s.db.QueryRowContext(ctx, seriesSelect+` WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return model.SeriesItem{}, fmt.Errorf("series %s: %w", id, ErrNotFound)
	}
	return got, err
}

// History returns the audit trail of one entity in seq order.
func (s *Store) History(ctx context.Context, kind model.EntityKind, entityID string) ([]model.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, auditSelect+`
		WHERE entity_kind = ? AND entity_id = ?
		ORDER BY seq ASC
	`, string(kind), entityID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	return collectAudit(rows)
}

// AuditEvents returns the entire audit log ordered for history
// queries: by entity kind, entity identity, then seq.
func (s *Store) AuditEvents(ctx context.Context) ([]model.AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, auditSelect+`
		ORDER BY entity_kind ASC, entity_id ASC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	return collectAudit(rows)
}

// AuditCount returns the total number of audit events.
func (s *Store) AuditCount(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM audit_events`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count audit events: %w", err)
	}
	return count, nil
}

func collectAudit(rows *sql.Rows) ([]model.AuditEvent, error) {
	defer rows.Close()

	events := []model.AuditEvent{}
	for rows.Next() {
		ev, err := scanAuditRow(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanScheduleRow(row rowScanner) (model.Schedule, error) {
	var sch model.Schedule
	var appNumber, appDate sql.NullString
	var tags, createdAt, updatedAt string
	err := row.Scan(
		&sch.ID,
		&appNumber,
		&sch.Title,
		&sch.ApprovingBody,
		&sch.ApprovalStatus,
		&appDate,
		&sch.RetentionStatement,
		&sch.Notes,
		&sch.PDF.Name,
		&sch.PDF.URL,
		&sch.PDF.Pages,
		&tags,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.Schedule{}, err
	}

	sch.ApplicationNumber = stringPtr(appNumber)
	sch.ApprovalDate = stringPtr(appDate)
	if sch.Tags, err = unmarshalList(tags); err != nil {
		return model.Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}
	if sch.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}
	if sch.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.Schedule{}, fmt.Errorf("scan schedule: %w", err)
	}
	return sch, nil
}

func scanSeriesRow(row rowScanner) (model.SeriesItem, error) {
	var item model.SeriesItem
	var coveredEnd sql.NullString
	var retention, volume, media, standards, related string
	var createdAt, updatedAt string
	err := row.Scan(
		&item.ID,
		&item.ScheduleID,
		&item.ItemNumber,
		&item.Title,
		&item.Description,
		&item.DatesCoveredStart,
		&coveredEnd,
		&item.OpenEnded,
		&item.Arrangement,
		&item.Division,
		&item.Contact,
		&item.Location,
		&retention,
		&item.RetentionIsPermanent,
		&item.RetentionText,
		&volume,
		&media,
		&standards,
		&related,
		&item.LegalHold,
		&item.AuditHold,
		&item.RecordsOfficer,
		&item.Representative,
		&item.Notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return model.SeriesItem{}, err
	}

	item.DatesCoveredEnd = stringPtr(coveredEnd)
	if item.Retention, err = unmarshalRetention(retention); err != nil {
		return model.SeriesItem{}, fmt.Errorf("scan series: %w", err)
	}
	if item.Volume, err = unmarshalVolume(volume); err != nil {
		return model.SeriesItem{}, fmt.Errorf("scan series: %w", err)
	}
	if item.MediaTypes, err = unmarshalList(media); err != nil {
		return model.SeriesItem{}, fmt.Errorf("scan series: %w", err)
	}
	if item.StandardRefs, err = unmarshalList(standards); err != nil {
		return model.SeriesItem{}, fmt.Errorf("scan series: %w", err)
	}
	if item.RelatedSeries, err = unmarshalList(related); err != nil {
		return model.SeriesItem{}, fmt.Errorf("scan series: %w", err)
	}
	if item.CreatedAt, err = parseTime(createdAt); err != nil {
		return model.SeriesItem{}, fmt.Errorf("scan series: %w", err)
	}
	if item.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return model.SeriesItem{}, fmt.Errorf("scan series: %w", err)
	}
	return item, nil
}

func scanAuditRow(row rowScanner) (model.AuditEvent, error) {
	var ev model.AuditEvent
	var at, payload string
	err := row.Scan(
		&ev.ID,
		&ev.Seq,
		&ev.EntityKind,
		&ev.EntityID,
		&ev.Action,
		&ev.Actor,
		&at,
		&payload,
	)
	if err != nil {
		return model.AuditEvent{}, err
	}

	if ev.At, err = parseTime(at); err != nil {
		return model.AuditEvent{}, fmt.Errorf("scan audit event: %w", err)
	}
	ev.Payload = []byte(payload)
	return ev, nil
}
