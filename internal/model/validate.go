package model

import (
	"fmt"
	"regexp"
	"time"
)

// ApplicationNumberPattern is the shape of a formalized application
// number, e.g. "25-012".
var ApplicationNumberPattern = regexp.MustCompile(`^\d{2}-\d{3}$`)

// Validation error codes. Each domain rule has a distinct code so a
// caller can report or filter violations without parsing messages.
const (
	CodeBadStatus            = "bad_approval_status"
	CodeBadApplicationNumber = "bad_application_number"
	CodeBadDate              = "bad_date"
	CodeOpenEndedMismatch    = "open_ended_mismatch"
	CodeMissingItemNumber    = "missing_item_number"
	CodeBadTrigger           = "bad_retention_trigger"
	CodeEmptyStages          = "empty_retention_stages"
	CodeBadStageLocation     = "bad_stage_location"
	CodeNegativeYears        = "negative_stage_years"
	CodeBadDisposition       = "bad_final_disposition"
	CodePermanentFlagDrift   = "permanent_flag_drift"
	CodeNegativeVolume       = "negative_volume"
)

// ValidationError describes one domain-rule violation on a record.
type ValidationError struct {
	Field   string
	Code    string
	Message string
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Field, e.Code, e.Message)
}

// validator accumulates violations during checks.
type validator struct {
	errs []ValidationError
}

// add appends a violation.
func (v *validator) add(field, code, format string, args ...any) {
	v.errs = append(v.errs, ValidationError{
		Field:   field,
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	})
}

// ValidateSchedule checks the domain constraints of a single schedule.
// Pure: no I/O, no mutation. All violations are collected, not
// short-circuited. Cross-record constraints (business-key uniqueness)
// are the store's job, not checked here.
func ValidateSchedule(s Schedule) []ValidationError {
	v := &validator{}

	if !ValidStatuses[s.ApprovalStatus] {
		v.add("approval_status", CodeBadStatus, "unknown approval status %q", s.ApprovalStatus)
	}
	if s.ApplicationNumber != nil && !ApplicationNumberPattern.MatchString(*s.ApplicationNumber) {
		v.add("application_number", CodeBadApplicationNumber,
			"application number %q does not match NN-NNN", *s.ApplicationNumber)
	}
	if s.ApprovalDate != nil && !isISODate(*s.ApprovalDate) {
		v.add("approval_date", CodeBadDate, "approval date %q is not an ISO date", *s.ApprovalDate)
	}

	return v.errs
}

// ValidateSeries checks the domain constraints of a single series item.
// Pure. Foreign-key and composite-key constraints require cross-record
// context and are enforced by the store, not here.
func ValidateSeries(i SeriesItem) []ValidationError {
	v := &validator{}

	if i.ItemNumber == "" {
		v.add("item_number", CodeMissingItemNumber, "item number is required")
	}

	v.checkCoverageDates(i)
	v.checkRetention(i.Retention, i.RetentionIsPermanent)

	if i.Volume.PaperCubicFeet < 0 || i.Volume.AnnualPaperAccrual < 0 ||
		i.Volume.ElectronicBytes < 0 || i.Volume.AnnualElectronicBytes < 0 {
		v.add("volume", CodeNegativeVolume, "volume metrics must be non-negative")
	}

	return v.errs
}

// checkCoverageDates enforces: both dates ISO-parseable, and
// dates_covered_end == null exactly when open_ended is true.
func (v *validator) checkCoverageDates(i SeriesItem) {
	if i.DatesCoveredStart != "" && !isISODate(i.DatesCoveredStart) {
		v.add("dates_covered_start", CodeBadDate,
			"coverage start %q is not an ISO date", i.DatesCoveredStart)
	}
	if i.DatesCoveredEnd != nil {
		if !isISODate(*i.DatesCoveredEnd) {
			v.add("dates_covered_end", CodeBadDate,
				"coverage end %q is not an ISO date", *i.DatesCoveredEnd)
		}
		if i.OpenEnded {
			v.add("open_ended", CodeOpenEndedMismatch,
				"open_ended is true but coverage end date is set")
		}
	} else if !i.OpenEnded {
		v.add("open_ended", CodeOpenEndedMismatch,
			"coverage end date is null but open_ended is false")
	}
}

// checkRetention validates the structured retention plan and the
// denormalized permanence flag against it.
func (v *validator) checkRetention(r Retention, isPermanent bool) {
	if !ValidTriggers[r.Trigger] {
		v.add("retention.trigger", CodeBadTrigger, "unknown retention trigger %q", r.Trigger)
	}
	if len(r.Stages) == 0 {
		v.add("retention.stages", CodeEmptyStages, "retention requires at least one stage")
	}
	for idx, stage := range r.Stages {
		if !ValidStageLocations[stage.Where] {
			v.add(fmt.Sprintf("retention.stages[%d].where", idx), CodeBadStageLocation,
				"unknown stage location %q", stage.Where)
		}
		if stage.Years < 0 {
			v.add(fmt.Sprintf("retention.stages[%d].years", idx), CodeNegativeYears,
				"stage years must be non-negative, got %v", stage.Years)
		}
	}
	if !ValidDispositions[r.FinalDisposition] {
		v.add("retention.final_disposition", CodeBadDisposition,
			"unknown final disposition %q", r.FinalDisposition)
	}
	if isPermanent != r.IsPermanent() {
		v.add("retention_is_permanent", CodePermanentFlagDrift,
			"retention_is_permanent=%v but final_disposition=%q", isPermanent, r.FinalDisposition)
	}
}

// isISODate reports whether s parses as a YYYY-MM-DD date.
func isISODate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}
