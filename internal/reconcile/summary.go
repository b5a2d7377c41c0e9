package reconcile

import (
	"fmt"

	"github.com/mwaltman/schedstore/internal/model"
)

// WarningCode categorizes a non-fatal per-record problem found during
// import.
type WarningCode string

const (
	// WarnValidation - a record failed domain validation and was skipped.
	WarnValidation WarningCode = "VALIDATION"

	// WarnReferential - a series item's schedule reference could not be
	// resolved and the item was skipped.
	WarnReferential WarningCode = "REFERENTIAL"

	// WarnConflict - duplicate business key among incoming schedules;
	// the later record folded into the earlier's resolved identity.
	WarnConflict WarningCode = "CONFLICT"

	// WarnStore - the storage medium rejected this record's write; the
	// record's mutation+audit unit failed atomically and was skipped.
	WarnStore WarningCode = "STORE"
)

// Warning reports one skipped or folded record with its reason.
type Warning struct {
	Code    WarningCode      `json:"code"`
	Kind    model.EntityKind `json:"kind,omitempty"`
	Ref     string           `json:"ref"`
	Message string           `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("[%s] %s %s: %s", w.Code, w.Kind, w.Ref, w.Message)
}

// Summary is the terminal result of a completed import.
type Summary struct {
	SchedulesCreated int       `json:"schedules_created"`
	SchedulesUpdated int       `json:"schedules_updated"`
	SeriesCreated    int       `json:"series_created"`
	SeriesUpdated    int       `json:"series_updated"`
	AuditAppended    int       `json:"audit_appended"`
	Warnings         []Warning `json:"warnings,omitempty"`
}

// Rejected counts the records that were skipped outright (validation,
// referential, or storage failures). Conflict warnings are
// informational: the record was folded, not dropped.
func (s *Summary) Rejected() int {
	n := 0
	for _, w := range s.Warnings {
		if w.Code != WarnConflict {
			n++
		}
	}
	return n
}

// warn appends a warning to the summary.
func (s *Summary) warn(code WarningCode, kind model.EntityKind, ref, format string, args ...any) {
	s.Warnings = append(s.Warnings, Warning{
		Code:    code,
		Kind:    kind,
		Ref:     ref,
		Message: fmt.Sprintf(format, args...),
	})
}
