package store

import (
	"context"
	"errors"
	"testing"

	"github.com/mwaltman/schedstore/internal/model"
)

func TestSchedules_DeterministicOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// Insert out of order: a draft, then two numbered schedules.
	draft := createTestSchedule("")
	draft.ApprovalStatus = model.StatusDraft
	draft.Title = "A draft"
	if _, _, _, err := s.UpsertSchedule(ctx, draft); err != nil {
		t.Fatalf("draft upsert failed: %v", err)
	}
	if _, _, _, err := s.UpsertSchedule(ctx, createTestSchedule("25-020")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if _, _, _, err := s.UpsertSchedule(ctx, createTestSchedule("25-001")); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	all, err := s.Schedules(ctx)
	if err != nil {
		t.Fatalf("Schedules() failed: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 schedules, got %d", len(all))
	}

	// Numbered schedules first in key order, drafts last.
	if all[0].ApplicationNumber == nil || *all[0].ApplicationNumber != "25-001" {
		t.Errorf("first schedule = %v, want 25-001", all[0].ApplicationNumber)
	}
	if all[1].ApplicationNumber == nil || *all[1].ApplicationNumber != "25-020" {
		t.Errorf("second schedule = %v, want 25-020", all[1].ApplicationNumber)
	}
	if all[2].ApplicationNumber != nil {
		t.Errorf("draft should sort last, got %v", *all[2].ApplicationNumber)
	}
}

func TestSeriesForSchedule_NumericItemOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	schID, _, _, _ := s.UpsertSchedule(ctx, createTestSchedule("25-012"))
	for _, n := range []string{"10", "2", "1"} {
		if _, _, _, err := s.UpsertSeries(ctx, createTestSeries(schID, n)); err != nil {
			t.Fatalf("series %s upsert failed: %v", n, err)
		}
	}

	items, err := s.SeriesForSchedule(ctx, schID)
	if err != nil {
		t.Fatalf("SeriesForSchedule() failed: %v", err)
	}

	var got []string
	for _, item := range items {
		got = append(got, item.ItemNumber)
	}
	want := []string{"1", "2", "10"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSeriesForSchedule_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	schID, _, _, _ := s.UpsertSchedule(ctx, createTestSchedule("25-012"))

	items, err := s.SeriesForSchedule(ctx, schID)
	if err != nil {
		t.Fatalf("SeriesForSchedule() failed: %v", err)
	}
	if items == nil {
		t.Error("expected empty slice, got nil")
	}
	if len(items) != 0 {
		t.Errorf("expected no items, got %d", len(items))
	}
}

func TestGetScheduleByNumber(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	id, _, _, _ := s.UpsertSchedule(ctx, createTestSchedule("25-012"))

	got, err := s.GetScheduleByNumber(ctx, "25-012")
	if err != nil {
		t.Fatalf("GetScheduleByNumber() failed: %v", err)
	}
	if got.ID != id {
		t.Errorf("resolved %s, want %s", got.ID, id)
	}

	if _, err := s.GetScheduleByNumber(ctx, "99-999"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSeriesRoundTripsAllFields(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	schID, _, _, _ := s.UpsertSchedule(ctx, createTestSchedule("25-012"))

	end := "2024-12-31"
	item := createTestSeries(schID, "7")
	item.Description = "Case files"
	item.DatesCoveredStart = "2001-01-01"
	item.DatesCoveredEnd = &end
	item.OpenEnded = false
	item.Retention = model.Retention{
		Trigger: model.TriggerCaseClosed,
		Stages: []model.RetentionStage{
			{Where: model.LocationOffice, Years: 2.5},
			{Where: model.LocationRecordsCenter, Years: 4},
		},
		FinalDisposition: model.DispositionPermanent,
	}
	item.RetentionIsPermanent = true
	item.Volume = model.Volume{PaperCubicFeet: 12.5, ElectronicBytes: 1 << 30, AnnualPaperAccrual: 0.5, AnnualElectronicBytes: 1 << 20}
	item.MediaTypes = model.StringList{"paper", "microfilm"}
	item.StandardRefs = model.StringList{"GRS 2.1"}
	item.RelatedSeries = model.StringList{"series-42"}
	item.LegalHold = true

	id, _, _, err := s.UpsertSeries(ctx, item)
	if err != nil {
		t.Fatalf("UpsertSeries() failed: %v", err)
	}

	got, err := s.GetSeries(ctx, id)
	if err != nil {
		t.Fatalf("GetSeries() failed: %v", err)
	}

	if got.Retention.Stages[0].Years != 2.5 {
		t.Errorf("stage years = %v, want 2.5", got.Retention.Stages[0].Years)
	}
	if !got.RetentionIsPermanent {
		t.Error("retention_is_permanent lost")
	}
	if got.Volume.ElectronicBytes != 1<<30 {
		t.Errorf("electronic bytes = %d, want %d", got.Volume.ElectronicBytes, 1<<30)
	}
	if len(got.MediaTypes) != 2 || got.MediaTypes[0] != "paper" {
		t.Errorf("media types = %v, want [paper microfilm]", got.MediaTypes)
	}
	if got.DatesCoveredEnd == nil || *got.DatesCoveredEnd != end {
		t.Errorf("coverage end = %v, want %s", got.DatesCoveredEnd, end)
	}
	if !got.LegalHold {
		t.Error("legal hold lost")
	}
}

func TestAuditEvents_OrderedForHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	schID, _, _, _ := s.UpsertSchedule(ctx, createTestSchedule("25-012"))
	seriesID, _, _, _ := s.UpsertSeries(ctx, createTestSeries(schID, "1"))

	upd := createTestSchedule("25-012")
	upd.Title = "Renamed"
	if _, _, _, err := s.UpsertSchedule(ctx, upd); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	events, err := s.AuditEvents(ctx)
	if err != nil {
		t.Fatalf("AuditEvents() failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events))
	}

	// Ordered by (kind, entity, seq): both schedule events together and
	// in seq order, the series event in its own group.
	var schedSeqs []int64
	for _, ev := range events {
		if ev.EntityKind == model.KindSchedule {
			if ev.EntityID != string(schID) {
				t.Errorf("unexpected schedule entity %s", ev.EntityID)
			}
			schedSeqs = append(schedSeqs, ev.Seq)
		} else if ev.EntityID != string(seriesID) {
			t.Errorf("unexpected series entity %s", ev.EntityID)
		}
	}
	if len(schedSeqs) != 2 || schedSeqs[0] >= schedSeqs[1] {
		t.Errorf("schedule history not in seq order: %v", schedSeqs)
	}
}
