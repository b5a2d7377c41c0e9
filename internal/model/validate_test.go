package model

import (
	"testing"
)

func strptr(s string) *string { return &s }

// validSeries returns a series item that passes all checks.
func validSeries() SeriesItem {
	return SeriesItem{
		ScheduleID:        ScheduleID("sch-1"),
		ItemNumber:        "1",
		Title:             "Personnel case files",
		DatesCoveredStart: "2019-01-01",
		OpenEnded:         true,
		Retention: Retention{
			Trigger: TriggerEndOfYear,
			Stages: []RetentionStage{
				{Where: LocationOffice, Years: 2},
				{Where: LocationRecordsCenter, Years: 4},
			},
			FinalDisposition: DispositionDestroy,
		},
	}
}

func TestValidateSchedule_Valid(t *testing.T) {
	tests := []struct {
		name string
		s    Schedule
	}{
		{
			name: "approved with application number",
			s: Schedule{
				ApplicationNumber: strptr("25-012"),
				Title:             "General retention schedule",
				ApprovalStatus:    StatusApproved,
				ApprovalDate:      strptr("2025-06-30"),
			},
		},
		{
			name: "draft without application number",
			s: Schedule{
				Title:          "Draft schedule",
				ApprovalStatus: StatusDraft,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errs := ValidateSchedule(tt.s); len(errs) != 0 {
				t.Errorf("ValidateSchedule() = %v, want no errors", errs)
			}
		})
	}
}

func TestValidateSchedule_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		s        Schedule
		wantCode string
	}{
		{
			name:     "unknown status",
			s:        Schedule{ApprovalStatus: "Approved"},
			wantCode: CodeBadStatus,
		},
		{
			name: "malformed application number",
			s: Schedule{
				ApplicationNumber: strptr("2025-12"),
				ApprovalStatus:    StatusApproved,
			},
			wantCode: CodeBadApplicationNumber,
		},
		{
			name: "bad approval date",
			s: Schedule{
				ApprovalStatus: StatusApproved,
				ApprovalDate:   strptr("June 30, 2025"),
			},
			wantCode: CodeBadDate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateSchedule(tt.s)
			if !hasCode(errs, tt.wantCode) {
				t.Errorf("ValidateSchedule() = %v, want code %q", errs, tt.wantCode)
			}
		})
	}
}

func TestValidateSchedule_CollectsAllViolations(t *testing.T) {
	s := Schedule{
		ApprovalStatus:    "bogus",
		ApplicationNumber: strptr("nope"),
		ApprovalDate:      strptr("yesterday"),
	}
	errs := ValidateSchedule(s)
	if len(errs) != 3 {
		t.Errorf("expected 3 violations collected, got %d: %v", len(errs), errs)
	}
}

func TestValidateSeries_Valid(t *testing.T) {
	if errs := ValidateSeries(validSeries()); len(errs) != 0 {
		t.Errorf("ValidateSeries() = %v, want no errors", errs)
	}
}

func TestValidateSeries_ClosedCoverage(t *testing.T) {
	i := validSeries()
	i.DatesCoveredEnd = strptr("2024-12-31")
	i.OpenEnded = false
	if errs := ValidateSeries(i); len(errs) != 0 {
		t.Errorf("ValidateSeries() = %v, want no errors", errs)
	}
}

func TestValidateSeries_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(*SeriesItem)
		wantCode string
	}{
		{
			name:     "missing item number",
			mutate:   func(i *SeriesItem) { i.ItemNumber = "" },
			wantCode: CodeMissingItemNumber,
		},
		{
			name:     "unknown trigger",
			mutate:   func(i *SeriesItem) { i.Retention.Trigger = "whenever" },
			wantCode: CodeBadTrigger,
		},
		{
			name:     "no stages",
			mutate:   func(i *SeriesItem) { i.Retention.Stages = nil },
			wantCode: CodeEmptyStages,
		},
		{
			name:     "unknown stage location",
			mutate:   func(i *SeriesItem) { i.Retention.Stages[0].Where = "attic" },
			wantCode: CodeBadStageLocation,
		},
		{
			name:     "negative years",
			mutate:   func(i *SeriesItem) { i.Retention.Stages[1].Years = -1 },
			wantCode: CodeNegativeYears,
		},
		{
			name:     "unknown disposition",
			mutate:   func(i *SeriesItem) { i.Retention.FinalDisposition = "shred" },
			wantCode: CodeBadDisposition,
		},
		{
			name:     "permanent flag drift",
			mutate:   func(i *SeriesItem) { i.RetentionIsPermanent = true },
			wantCode: CodePermanentFlagDrift,
		},
		{
			name: "end date with open_ended true",
			mutate: func(i *SeriesItem) {
				i.DatesCoveredEnd = strptr("2024-12-31")
				i.OpenEnded = true
			},
			wantCode: CodeOpenEndedMismatch,
		},
		{
			name: "null end date with open_ended false",
			mutate: func(i *SeriesItem) {
				i.DatesCoveredEnd = nil
				i.OpenEnded = false
			},
			wantCode: CodeOpenEndedMismatch,
		},
		{
			name:     "unparseable start date",
			mutate:   func(i *SeriesItem) { i.DatesCoveredStart = "circa 1990" },
			wantCode: CodeBadDate,
		},
		{
			name:     "negative volume",
			mutate:   func(i *SeriesItem) { i.Volume.PaperCubicFeet = -3 },
			wantCode: CodeNegativeVolume,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := validSeries()
			tt.mutate(&i)
			errs := ValidateSeries(i)
			if !hasCode(errs, tt.wantCode) {
				t.Errorf("ValidateSeries() = %v, want code %q", errs, tt.wantCode)
			}
		})
	}
}

func TestValidateSeries_PermanentConsistent(t *testing.T) {
	i := validSeries()
	i.Retention.FinalDisposition = DispositionPermanent
	i.RetentionIsPermanent = true
	if errs := ValidateSeries(i); len(errs) != 0 {
		t.Errorf("ValidateSeries() = %v, want no errors", errs)
	}
}

func hasCode(errs []ValidationError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}
