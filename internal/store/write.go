package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mwaltman/schedstore/internal/model"
)

// ErrScheduleInUse is returned when deleting a schedule that still has
// series items. Series cannot outlive their schedule, so the items must
// be deleted (and audited) first.
var ErrScheduleInUse = errors.New("schedule still has series items")

// UpsertSchedule inserts or updates a schedule and its audit event in
// one transaction.
//
// The merge target is found by identity first, then by the
// application_number business key, so a second upsert with a colliding
// application number updates the existing record instead of creating a
// duplicate. If sch.ID is empty and no target exists, a fresh identity
// is minted.
//
// Returns the record's identity in this store, whether it was created,
// and whether anything was written. An update that changes no fields
// writes nothing and records no audit event.
func (s *Store) UpsertSchedule(ctx context.Context, sch model.Schedule) (id model.ScheduleID, created, changed bool, err error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert schedule: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	existing, err := s.findScheduleTx(ctx, tx, sch)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert schedule: %w", err)
	}

	now := s.now()

	if existing == nil {
		if sch.ID == "" {
			sch.ID = model.ScheduleID(s.newID())
		}
		sch.CreatedAt = now
		sch.UpdatedAt = now

		if err := insertScheduleTx(ctx, tx, sch); err != nil {
			return "", false, false, fmt.Errorf("upsert schedule: insert: %w", err)
		}
		snapshot, err := model.ScheduleSnapshot(sch)
		if err != nil {
			return "", false, false, fmt.Errorf("upsert schedule: %w", err)
		}
		if err := s.appendAuditTx(ctx, tx, model.KindSchedule, string(sch.ID), model.ActionCreate, snapshot); err != nil {
			return "", false, false, fmt.Errorf("upsert schedule: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", false, false, fmt.Errorf("upsert schedule: commit: %w", err)
		}
		return sch.ID, true, true, nil
	}

	// Merge into the existing record: identity and creation time are
	// the store's, everything else is the caller's.
	sch.ID = existing.ID
	sch.CreatedAt = existing.CreatedAt

	oldSnap, err := model.ScheduleSnapshot(*existing)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert schedule: %w", err)
	}
	newSnap, err := model.ScheduleSnapshot(sch)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert schedule: %w", err)
	}
	if oldSnap == newSnap {
		// Nothing effective changed: no write, no vacuous audit entry.
		return existing.ID, false, false, nil
	}

	sch.UpdatedAt = now
	if err := updateScheduleTx(ctx, tx, sch); err != nil {
		return "", false, false, fmt.Errorf("upsert schedule: update: %w", err)
	}
	if err := s.appendAuditTx(ctx, tx, model.KindSchedule, string(sch.ID), model.ActionUpdate, newSnap); err != nil {
		return "", false, false, fmt.Errorf("upsert schedule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, false, fmt.Errorf("upsert schedule: commit: %w", err)
	}
	return sch.ID, false, true, nil
}

// UpsertSeries inserts or updates a series item and its audit event in
// one transaction.
//
// The referenced schedule must already exist in this store; otherwise
// ErrScheduleMissing is returned and nothing is written. The merge
// target is found by identity first, then by the (schedule_id,
// item_number) composite key, so colliding item numbers under the same
// schedule update in place rather than duplicate.
func (s *Store) UpsertSeries(ctx context.Context, item model.SeriesItem) (id model.SeriesID, created, changed bool, err error) {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert series: begin tx: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM schedules WHERE id = ?`, string(item.ScheduleID)).Scan(&exists)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert series: check schedule: %w", err)
	}
	if exists == 0 {
		return "", false, false, fmt.Errorf("upsert series %q: %w", item.ItemNumber, ErrScheduleMissing)
	}

	existing, err := s.findSeriesTx(ctx, tx, item)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert series: %w", err)
	}

	now := s.now()

	if existing == nil {
		if item.ID == "" {
			item.ID = model.SeriesID(s.newID())
		}
		item.CreatedAt = now
		item.UpdatedAt = now

		if err := insertSeriesTx(ctx, tx, item); err != nil {
			return "", false, false, fmt.Errorf("upsert series: insert: %w", err)
		}
		snapshot, err := model.SeriesSnapshot(item)
		if err != nil {
			return "", false, false, fmt.Errorf("upsert series: %w", err)
		}
		if err := s.appendAuditTx(ctx, tx, model.KindSeries, string(item.ID), model.ActionCreate, snapshot); err != nil {
			return "", false, false, fmt.Errorf("upsert series: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return "", false, false, fmt.Errorf("upsert series: commit: %w", err)
		}
		return item.ID, true, true, nil
	}

	item.ID = existing.ID
	item.CreatedAt = existing.CreatedAt

	oldSnap, err := model.SeriesSnapshot(*existing)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert series: %w", err)
	}
	newSnap, err := model.SeriesSnapshot(item)
	if err != nil {
		return "", false, false, fmt.Errorf("upsert series: %w", err)
	}
	if oldSnap == newSnap {
		return existing.ID, false, false, nil
	}

	item.UpdatedAt = now
	if err := updateSeriesTx(ctx, tx, item); err != nil {
		return "", false, false, fmt.Errorf("upsert series: update: %w", err)
	}
	if err := s.appendAuditTx(ctx, tx, model.KindSeries, string(item.ID), model.ActionUpdate, newSnap); err != nil {
		return "", false, false, fmt.Errorf("upsert series: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, false, fmt.Errorf("upsert series: commit: %w", err)
	}
	return item.ID, false, true, nil
}

// DeleteSchedule removes a schedule and records a delete audit event
// holding the prior state. Fails with ErrScheduleInUse while series
// items still reference it, and ErrNotFound if it does not exist.
func (s *Store) DeleteSchedule(ctx context.Context, id model.ScheduleID) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("delete schedule: begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanScheduleRow(tx.QueryRowContext(ctx, scheduleSelect+` WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete schedule %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}

	var inUse int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM series_items WHERE schedule_id = ?`, string(id)).Scan(&inUse); err != nil {
		return fmt.Errorf("delete schedule: count series: %w", err)
	}
	if inUse > 0 {
		return fmt.Errorf("delete schedule %s: %w", id, ErrScheduleInUse)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}

	snapshot, err := model.ScheduleSnapshot(existing)
	if err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if err := s.appendAuditTx(ctx, tx, model.KindSchedule, string(id), model.ActionDelete, snapshot); err != nil {
		return fmt.Errorf("delete schedule: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete schedule: commit: %w", err)
	}
	return nil
}

// DeleteSeries removes a series item and records a delete audit event
// holding the prior state.
func (s *Store) DeleteSeries(ctx context.Context, id model.SeriesID) error {
	tx, err := s.beginTx(ctx)
	if err != nil {
		return fmt.Errorf("delete series: begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := scanSeriesRow(tx.QueryRowContext(ctx, seriesSelect+` WHERE id = ?`, string(id)))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("delete series %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM series_items WHERE id = ?`, string(id)); err != nil {
		return fmt.Errorf("delete series: %w", err)
	}

	snapshot, err := model.SeriesSnapshot(existing)
	if err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	if err := s.appendAuditTx(ctx, tx, model.KindSeries, string(id), model.ActionDelete, snapshot); err != nil {
		return fmt.Errorf("delete series: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete series: commit: %w", err)
	}
	return nil
}

// AppendImportedAudit appends one audit event carried in an import
// payload as additional history, under a freshly minted identity and
// seq. Neither the event's own source identity nor its seq is reused;
// identities are not portable across stores.
//
// An event whose (kind, entity, action, actor, timestamp, payload)
// tuple already exists verbatim is already-present history and is
// skipped, so re-importing a store's own backup appends nothing.
func (s *Store) AppendImportedAudit(ctx context.Context, ev model.AuditEvent) (appended bool, err error) {
	payload := compactJSON(ev.Payload)
	if payload == "" {
		payload = "{}"
	}
	at := formatTime(ev.At)

	tx, err := s.beginTx(ctx)
	if err != nil {
		return false, fmt.Errorf("append imported audit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	var count int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM audit_events
		WHERE entity_kind = ? AND entity_id = ? AND action = ? AND actor = ? AND at = ? AND payload = ?
	`, string(ev.EntityKind), ev.EntityID, string(ev.Action), ev.Actor, at, payload).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("append imported audit: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_events (seq, entity_kind, entity_id, action, actor, at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.clock.next(), string(ev.EntityKind), ev.EntityID, string(ev.Action), ev.Actor, at, payload)
	if err != nil {
		return false, fmt.Errorf("append imported audit: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("append imported audit: commit: %w", err)
	}
	return true, nil
}

// appendAuditTx writes one audit event inside the caller's
// transaction. This is the only way audit events are produced by local
// mutations; it rides the same commit as the data write so both happen
// or neither does.
func (s *Store) appendAuditTx(ctx context.Context, tx *sql.Tx, kind model.EntityKind, entityID string, action model.AuditAction, payload string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_events (seq, entity_kind, entity_id, action, actor, at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, s.clock.next(), string(kind), entityID, string(action), s.actor, formatTime(s.now()), payload)
	if err != nil {
		return fmt.Errorf("append audit: %w", err)
	}
	return nil
}

// findScheduleTx locates the upsert target: by identity, falling back
// to the application_number business key.
func (s *Store) findScheduleTx(ctx context.Context, tx *sql.Tx, sch model.Schedule) (*model.Schedule, error) {
	if sch.ID != "" {
		got, err := scanScheduleRow(tx.QueryRowContext(ctx, scheduleSelect+` WHERE id = ?`, string(sch.ID)))
		if err == nil {
			return &got, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	if sch.ApplicationNumber != nil {
		got, err := scanScheduleRow(tx.QueryRowContext(ctx, scheduleSelect+` WHERE application_number = ?`, *sch.ApplicationNumber))
		if err == nil {
			return &got, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	return nil, nil
}

// findSeriesTx locates the upsert target: by identity, falling back to
// the (schedule_id, item_number) composite key.
func (s *Store) findSeriesTx(ctx context.Context, tx *sql.Tx, item model.SeriesItem) (*model.SeriesItem, error) {
	if item.ID != "" {
		got, err := scanSeriesRow(tx.QueryRowContext(ctx, seriesSelect+` WHERE id = ?`, string(item.ID)))
		if err == nil {
			return &got, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}
	got, err := scanSeriesRow(tx.QueryRowContext(ctx,
		seriesSelect+` WHERE schedule_id = ? AND item_number = ?`,
		string(item.ScheduleID), item.ItemNumber))
	if err == nil {
		return &got, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return nil, nil
}

func insertScheduleTx(ctx context.Context, tx *sql.Tx, sch model.Schedule) error {
	tags, err := marshalList(sch.Tags)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO schedules
		(id, application_number, title, approving_body, approval_status, approval_date,
		 retention_statement, notes, pdf_name, pdf_url, pdf_pages, tags, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(sch.ID),
		nullString(sch.ApplicationNumber),
		sch.Title,
		sch.ApprovingBody,
		string(sch.ApprovalStatus),
		nullString(sch.ApprovalDate),
		sch.RetentionStatement,
		sch.Notes,
		sch.PDF.Name,
		sch.PDF.URL,
		sch.PDF.Pages,
		tags,
		formatTime(sch.CreatedAt),
		formatTime(sch.UpdatedAt),
	)
	return err
}

func updateScheduleTx(ctx context.Context, tx *sql.Tx, sch model.Schedule) error {
	tags, err := marshalList(sch.Tags)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE schedules SET
			application_number = ?, title = ?, approving_body = ?, approval_status = ?,
			approval_date = ?, retention_statement = ?, notes = ?, pdf_name = ?,
			pdf_url = ?, pdf_pages = ?, tags = ?, updated_at = ?
		WHERE id = ?
	`,
		nullString(sch.ApplicationNumber),
		sch.Title,
		sch.ApprovingBody,
		string(sch.ApprovalStatus),
		nullString(sch.ApprovalDate),
		sch.RetentionStatement,
		sch.Notes,
		sch.PDF.Name,
		sch.PDF.URL,
		sch.PDF.Pages,
		tags,
		formatTime(sch.UpdatedAt),
		string(sch.ID),
	)
	return err
}

func insertSeriesTx(ctx context.Context, tx *sql.Tx, item model.SeriesItem) error {
	retention, err := marshalRetention(item.Retention)
	if err != nil {
		return err
	}
	volume, err := marshalVolume(item.Volume)
	if err != nil {
		return err
	}
	media, err := marshalList(item.MediaTypes)
	if err != nil {
		return err
	}
	standards, err := marshalList(item.StandardRefs)
	if err != nil {
		return err
	}
	related, err := marshalList(item.RelatedSeries)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO series_items
		(id, schedule_id, item_number, title, description, dates_covered_start,
		 dates_covered_end, open_ended, arrangement, division, contact, location,
		 retention, retention_is_permanent, retention_text, volume, media_types,
		 standard_refs, related_series, legal_hold, audit_hold, records_officer,
		 representative, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		string(item.ID),
		string(item.ScheduleID),
		item.ItemNumber,
		item.Title,
		item.Description,
		item.DatesCoveredStart,
		nullString(item.DatesCoveredEnd),
		item.OpenEnded,
		item.Arrangement,
		item.Division,
		item.Contact,
		item.Location,
		retention,
		item.RetentionIsPermanent,
		item.RetentionText,
		volume,
		media,
		standards,
		related,
		item.LegalHold,
		item.AuditHold,
		item.RecordsOfficer,
		item.Representative,
		item.Notes,
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
	)
	return err
}

func updateSeriesTx(ctx context.Context, tx *sql.Tx, item model.SeriesItem) error {
	retention, err := marshalRetention(item.Retention)
	if err != nil {
		return err
	}
	volume, err := marshalVolume(item.Volume)
	if err != nil {
		return err
	}
	media, err := marshalList(item.MediaTypes)
	if err != nil {
		return err
	}
	standards, err := marshalList(item.StandardRefs)
	if err != nil {
		return err
	}
	related, err := marshalList(item.RelatedSeries)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE series_items SET
			schedule_id = ?, item_number = ?, title = ?, description = ?,
			dates_covered_start = ?, dates_covered_end = ?, open_ended = ?,
			arrangement = ?, division = ?, contact = ?, location = ?, retention = ?,
			retention_is_permanent = ?, retention_text = ?, volume = ?, media_types = ?,
			standard_refs = ?, related_series = ?, legal_hold = ?, audit_hold = ?,
			records_officer = ?, representative = ?, notes = ?, updated_at = ?
		WHERE id = ?
	`,
		string(item.ScheduleID),
		item.ItemNumber,
		item.Title,
		item.Description,
		item.DatesCoveredStart,
		nullString(item.DatesCoveredEnd),
		item.OpenEnded,
		item.Arrangement,
		item.Division,
		item.Contact,
		item.Location,
		retention,
		item.RetentionIsPermanent,
		item.RetentionText,
		volume,
		media,
		standards,
		related,
		item.LegalHold,
		item.AuditHold,
		item.RecordsOfficer,
		item.Representative,
		item.Notes,
		formatTime(item.UpdatedAt),
		string(item.ID),
	)
	return err
}
