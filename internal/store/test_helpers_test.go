package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwaltman/schedstore/internal/model"
)

// createTestStore creates a store in a temp directory with a fixed
// wall clock and sequential IDs for deterministic assertions.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")

	n := 0
	s, err := Open(path,
		WithNow(func() time.Time {
			return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
		}),
		WithIDSource(func() string {
			n++
			return fmt.Sprintf("id-%04d", n)
		}),
		WithActor("tester"),
	)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestSchedule builds a minimal valid schedule.
func createTestSchedule(appNumber string) model.Schedule {
	sch := model.Schedule{
		Title:          "Test schedule",
		ApprovalStatus: model.StatusApproved,
	}
	if appNumber != "" {
		sch.ApplicationNumber = &appNumber
	}
	return sch
}

// createTestSeries builds a minimal valid series item under a schedule.
func createTestSeries(scheduleID model.ScheduleID, itemNumber string) model.SeriesItem {
	return model.SeriesItem{
		ScheduleID: scheduleID,
		ItemNumber: itemNumber,
		Title:      "Test series",
		OpenEnded:  true,
		Retention: model.Retention{
			Trigger:          model.TriggerEndOfYear,
			Stages:           []model.RetentionStage{{Where: model.LocationOffice, Years: 3}},
			FinalDisposition: model.DispositionDestroy,
		},
	}
}
