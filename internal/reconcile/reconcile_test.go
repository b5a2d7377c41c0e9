package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwaltman/schedstore/internal/exchange"
	"github.com/mwaltman/schedstore/internal/model"
	"github.com/mwaltman/schedstore/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	n := 0
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"),
		store.WithNow(func() time.Time {
			return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		}),
		store.WithIDSource(func() string {
			n++
			return fmt.Sprintf("id-%04d", n)
		}),
		store.WithActor("tester"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func quietLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func strptr(s string) *string { return &s }

func testSchedule(id, appNumber string) model.Schedule {
	sch := model.Schedule{
		ID:             model.ScheduleID(id),
		Title:          "Fiscal records",
		ApprovingBody:  "Records Board",
		ApprovalStatus: model.StatusApproved,
	}
	if appNumber != "" {
		sch.ApplicationNumber = strptr(appNumber)
	} else {
		sch.ApprovalStatus = model.StatusDraft
	}
	return sch
}

func testSeries(id, scheduleID, itemNumber string) model.SeriesItem {
	return model.SeriesItem{
		ID:         model.SeriesID(id),
		ScheduleID: model.ScheduleID(scheduleID),
		ItemNumber: itemNumber,
		Title:      "Vouchers",
		OpenEnded:  true,
		Retention: model.Retention{
			Trigger:          model.TriggerEndOfYear,
			Stages:           []model.RetentionStage{{Where: model.LocationOffice, Years: 6}},
			FinalDisposition: model.DispositionDestroy,
		},
	}
}

func marshalPayload(t *testing.T, p *exchange.Payload) []byte {
	t.Helper()
	if p.Schedules == nil {
		p.Schedules = []model.Schedule{}
	}
	if p.SeriesItems == nil {
		p.SeriesItems = []model.SeriesItem{}
	}
	if p.AuditEvents == nil {
		p.AuditEvents = []model.AuditEvent{}
	}
	p.Version = exchange.Version
	p.ExportedAt = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	data, err := p.Marshal()
	require.NoError(t, err)
	return data
}

func hasWarning(summary *Summary, code WarningCode) bool {
	for _, w := range summary.Warnings {
		if w.Code == code {
			return true
		}
	}
	return false
}

func TestImportCreatesScheduleAndSeries(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := marshalPayload(t, &exchange.Payload{
		Schedules:   []model.Schedule{testSchedule("src-1", "25-012")},
		SeriesItems: []model.SeriesItem{testSeries("src-s1", "src-1", "1")},
	})

	summary, err := NewImporter(s, Options{Logger: quietLogger()}).Import(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SchedulesCreated)
	assert.Equal(t, 0, summary.SchedulesUpdated)
	assert.Equal(t, 1, summary.SeriesCreated)
	assert.Equal(t, 0, summary.SeriesUpdated)
	assert.Equal(t, 2, summary.AuditAppended)
	assert.Equal(t, 0, summary.Rejected())
	assert.Empty(t, summary.Warnings)

	sch, err := s.GetScheduleByNumber(ctx, "25-012")
	require.NoError(t, err)
	assert.NotEqual(t, model.ScheduleID("src-1"), sch.ID, "incoming identity must not be reused")

	items, err := s.SeriesForSchedule(ctx, sch.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "1", items[0].ItemNumber)
	assert.Equal(t, sch.ID, items[0].ScheduleID)
}

func TestReimportUnchangedIsNoOp(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := marshalPayload(t, &exchange.Payload{
		Schedules:   []model.Schedule{testSchedule("src-1", "25-012")},
		SeriesItems: []model.SeriesItem{testSeries("src-s1", "src-1", "1")},
	})

	imp := NewImporter(s, Options{Logger: quietLogger()})
	_, err := imp.Import(ctx, data)
	require.NoError(t, err)

	before, err := s.AuditCount(ctx)
	require.NoError(t, err)

	summary, err := imp.Import(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SchedulesCreated)
	assert.Equal(t, 0, summary.SchedulesUpdated)
	assert.Equal(t, 0, summary.SeriesCreated)
	assert.Equal(t, 0, summary.SeriesUpdated)
	assert.Equal(t, 0, summary.AuditAppended)

	after, err := s.AuditCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after, "no-op reimport must not append audit events")
}

func TestDuplicateBusinessKeyFoldsWithLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := testSchedule("src-1", "25-012")
	first.Title = "First title"
	second := testSchedule("src-2", "25-012")
	second.Title = "Second title"

	data := marshalPayload(t, &exchange.Payload{
		Schedules: []model.Schedule{first, second},
	})

	summary, err := NewImporter(s, Options{Logger: quietLogger()}).Import(ctx, data)
	require.NoError(t, err)

	assert.True(t, hasWarning(summary, WarnConflict))
	assert.Equal(t, 0, summary.Rejected(), "conflicts are folded, not rejected")

	schedules, err := s.Schedules(ctx)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "Second title", schedules[0].Title)
}

func TestSeriesRejectedWhenScheduleInvalid(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bad := testSchedule("src-1", "")
	bad.ApplicationNumber = strptr("2x-99")
	bad.ApprovalStatus = model.StatusApproved

	data := marshalPayload(t, &exchange.Payload{
		Schedules:   []model.Schedule{bad},
		SeriesItems: []model.SeriesItem{testSeries("src-s1", "src-1", "1")},
	})

	summary, err := NewImporter(s, Options{Logger: quietLogger()}).Import(ctx, data)
	require.NoError(t, err)

	assert.True(t, hasWarning(summary, WarnValidation))
	assert.True(t, hasWarning(summary, WarnReferential))
	assert.Equal(t, 2, summary.Rejected())

	schedules, err := s.Schedules(ctx)
	require.NoError(t, err)
	assert.Empty(t, schedules)

	count, err := s.AuditCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestDraftsStayDistinctByDefault(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := marshalPayload(t, &exchange.Payload{
		Schedules: []model.Schedule{testSchedule("src-1", "")},
	})

	imp := NewImporter(s, Options{Logger: quietLogger()})
	_, err := imp.Import(ctx, data)
	require.NoError(t, err)
	summary, err := imp.Import(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SchedulesCreated)

	schedules, err := s.Schedules(ctx)
	require.NoError(t, err)
	assert.Len(t, schedules, 2, "identical drafts must stay distinct records")
}

func TestMergeDraftsByTitle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	data := marshalPayload(t, &exchange.Payload{
		Schedules: []model.Schedule{testSchedule("src-1", "")},
	})

	imp := NewImporter(s, Options{MergeDraftsByTitle: true, Logger: quietLogger()})
	_, err := imp.Import(ctx, data)
	require.NoError(t, err)
	summary, err := imp.Import(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SchedulesCreated)
	assert.Equal(t, 0, summary.SchedulesUpdated)

	schedules, err := s.Schedules(ctx)
	require.NoError(t, err)
	assert.Len(t, schedules, 1)
}

func TestMergeDraftsByTitleAmbiguousStaysNew(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Two existing drafts share the title, so a title match is
	// ambiguous and the incoming draft must not merge into either.
	seed := marshalPayload(t, &exchange.Payload{
		Schedules: []model.Schedule{testSchedule("src-1", ""), testSchedule("src-2", "")},
	})
	imp := NewImporter(s, Options{Logger: quietLogger()})
	_, err := imp.Import(context.Background(), seed)
	require.NoError(t, err)

	data := marshalPayload(t, &exchange.Payload{
		Schedules: []model.Schedule{testSchedule("src-3", "")},
	})
	merging := NewImporter(s, Options{MergeDraftsByTitle: true, Logger: quietLogger()})
	summary, err := merging.Import(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SchedulesCreated)
	assert.True(t, hasWarning(summary, WarnConflict))

	schedules, err := s.Schedules(ctx)
	require.NoError(t, err)
	assert.Len(t, schedules, 3)
}

func TestStructuralFailureLeavesStoreUntouched(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	imp := NewImporter(s, Options{Logger: quietLogger()})

	for name, payload := range map[string]string{
		"not json":      `{{{`,
		"not object":    `[1, 2, 3]`,
		"wrong version": `{"exported_at":"2026-01-01T00:00:00Z","version":1,"schedules":[],"series_items":[],"audit_events":[]}`,
		"missing array": `{"exported_at":"2026-01-01T00:00:00Z","version":2,"schedules":[],"series_items":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			summary, err := imp.Import(ctx, []byte(payload))
			require.Error(t, err)
			assert.Nil(t, summary)
		})
	}

	count, err := s.AuditCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, count, "structural failures must not mutate the store")
}

func TestMalformedRecordIsWarnedNotFatal(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// A schedule smuggling tags in as a scalar string fails decode;
	// the well-formed sibling still imports.
	payload := `{
		"exported_at": "2026-01-01T00:00:00Z",
		"version": 2,
		"schedules": [
			{"_id": "src-1", "application_number": "25-001", "title": "Bad tags", "approval_status": "approved", "tags": "a,b"},
			{"_id": "src-2", "application_number": "25-002", "title": "Good", "approval_status": "approved"}
		],
		"series_items": [],
		"audit_events": []
	}`

	summary, err := NewImporter(s, Options{Logger: quietLogger()}).Import(ctx, []byte(payload))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.SchedulesCreated)
	assert.True(t, hasWarning(summary, WarnValidation))
	assert.Equal(t, 1, summary.Rejected())

	_, err = s.GetScheduleByNumber(ctx, "25-002")
	assert.NoError(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	schID, _, _, err := s.UpsertSchedule(ctx, testSchedule("", "25-012"))
	require.NoError(t, err)
	_, _, _, err = s.UpsertSeries(ctx, testSeries("", string(schID), "1"))
	require.NoError(t, err)

	payload, err := NewExporter(s, quietLogger()).Export(ctx, exchange.Agency{Name: "Test Agency", Abbrev: "TA"}, ExportFilter{})
	require.NoError(t, err)
	require.Len(t, payload.Schedules, 1)
	require.Len(t, payload.SeriesItems, 1)
	require.Len(t, payload.AuditEvents, 2)
	data, err := payload.Marshal()
	require.NoError(t, err)

	before, err := s.AuditCount(ctx)
	require.NoError(t, err)

	summary, err := NewImporter(s, Options{Logger: quietLogger()}).Import(ctx, data)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.SchedulesCreated)
	assert.Equal(t, 0, summary.SchedulesUpdated)
	assert.Equal(t, 0, summary.SeriesCreated)
	assert.Equal(t, 0, summary.SeriesUpdated)
	assert.Equal(t, 0, summary.AuditAppended)
	assert.Empty(t, summary.Warnings)

	after, err := s.AuditCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestImportIntoDistinctStoreMintsNewIdentities(t *testing.T) {
	ctx := context.Background()

	src := newTestStore(t)
	srcSchID, _, _, err := src.UpsertSchedule(ctx, testSchedule("", "25-012"))
	require.NoError(t, err)
	srcSeriesID, _, _, err := src.UpsertSeries(ctx, testSeries("", string(srcSchID), "1"))
	require.NoError(t, err)

	payload, err := NewExporter(src, quietLogger()).Export(ctx, exchange.Agency{}, ExportFilter{})
	require.NoError(t, err)
	data, err := payload.Marshal()
	require.NoError(t, err)

	dst := newTestStore(t)
	// Pre-existing data ensures the target's ID space is already in
	// use before the import runs.
	_, _, _, err = dst.UpsertSchedule(ctx, testSchedule("", "24-001"))
	require.NoError(t, err)

	summary, err := NewImporter(dst, Options{Logger: quietLogger()}).Import(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.SchedulesCreated)
	assert.Equal(t, 1, summary.SeriesCreated)

	got, err := dst.GetScheduleByNumber(ctx, "25-012")
	require.NoError(t, err)
	assert.NotEqual(t, srcSchID, got.ID)

	items, err := dst.SeriesForSchedule(ctx, got.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.NotEqual(t, srcSeriesID, items[0].ID)

	// Carried history was remapped onto the new identities.
	history, err := dst.History(ctx, model.KindSchedule, string(got.ID))
	require.NoError(t, err)
	assert.NotEmpty(t, history)
}

func TestExportFilterByStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	approvedID, _, _, err := s.UpsertSchedule(ctx, testSchedule("", "25-012"))
	require.NoError(t, err)
	_, _, _, err = s.UpsertSchedule(ctx, testSchedule("", ""))
	require.NoError(t, err)
	_, _, _, err = s.UpsertSeries(ctx, testSeries("", string(approvedID), "1"))
	require.NoError(t, err)

	payload, err := NewExporter(s, quietLogger()).Export(ctx, exchange.Agency{}, ExportFilter{
		Statuses: []model.ApprovalStatus{model.StatusApproved},
	})
	require.NoError(t, err)

	require.Len(t, payload.Schedules, 1)
	assert.Equal(t, approvedID, payload.Schedules[0].ID)
	assert.Len(t, payload.SeriesItems, 1)
	// Only history of included entities rides along.
	for _, ev := range payload.AuditEvents {
		assert.Contains(t, []string{string(approvedID), string(payload.SeriesItems[0].ID)}, ev.EntityID)
	}
	require.NotEmpty(t, payload.AuditEvents)
}

func TestImportCancelledBeforeMutation(t *testing.T) {
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	data := marshalPayload(t, &exchange.Payload{
		Schedules: []model.Schedule{testSchedule("src-1", "25-012")},
	})

	_, err := NewImporter(s, Options{Logger: quietLogger()}).Import(ctx, data)
	require.ErrorIs(t, err, context.Canceled)

	count, err := s.AuditCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestImportCancelledMidRunReportsCommittedWork(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	// The store reads the clock twice per schedule write: once for the
	// row timestamps and once for the audit event. Cancelling on the
	// third read lands after the first record's transaction committed
	// and before the second record's write can.
	calls := 0
	n := 0
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"),
		store.WithNow(func() time.Time {
			calls++
			if calls == 3 {
				cancel()
			}
			return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		}),
		store.WithIDSource(func() string {
			n++
			return fmt.Sprintf("id-%04d", n)
		}),
		store.WithActor("tester"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	data := marshalPayload(t, &exchange.Payload{
		Schedules: []model.Schedule{
			testSchedule("src-1", "25-012"),
			testSchedule("src-2", "25-013"),
		},
		SeriesItems: []model.SeriesItem{testSeries("sr-1", "src-1", "1")},
	})

	summary, err := NewImporter(s, Options{Logger: quietLogger()}).Import(ctx, data)
	require.ErrorIs(t, err, context.Canceled)

	// The partial summary must still account for every audit event the
	// committed writes produced.
	assert.Equal(t, 1, summary.SchedulesCreated)
	assert.Equal(t, 1, summary.AuditAppended)

	count, err := s.AuditCount(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, summary.AuditAppended, count)
}
