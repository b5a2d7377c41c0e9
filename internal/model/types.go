package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ScheduleID is the opaque internal identity of a schedule.
// Minted by the store (or the identity resolver during import), never
// derived from any externally supplied value.
type ScheduleID string

// SeriesID is the opaque internal identity of a series item.
type SeriesID string

// ApprovalStatus is the lifecycle state of a schedule.
type ApprovalStatus string

const (
	StatusDraft      ApprovalStatus = "draft"
	StatusSubmitted  ApprovalStatus = "submitted"
	StatusApproved   ApprovalStatus = "approved"
	StatusSuperseded ApprovalStatus = "superseded"
	StatusDenied     ApprovalStatus = "denied"
)

// ValidStatuses defines the allowed approval statuses.
var ValidStatuses = map[ApprovalStatus]bool{
	StatusDraft:      true,
	StatusSubmitted:  true,
	StatusApproved:   true,
	StatusSuperseded: true,
	StatusDenied:     true,
}

// RetentionTrigger starts the retention clock for a series item.
type RetentionTrigger string

const (
	TriggerSuperseded RetentionTrigger = "superseded"
	TriggerEndOfYear  RetentionTrigger = "end_of_year"
	TriggerCaseClosed RetentionTrigger = "case_closed"
	TriggerObsolete   RetentionTrigger = "obsolete"
	TriggerDate       RetentionTrigger = "date"
)

// ValidTriggers defines the allowed retention triggers.
var ValidTriggers = map[RetentionTrigger]bool{
	TriggerSuperseded: true,
	TriggerEndOfYear:  true,
	TriggerCaseClosed: true,
	TriggerObsolete:   true,
	TriggerDate:       true,
}

// StageLocation is where records live during a retention stage.
type StageLocation string

const (
	LocationOffice        StageLocation = "office"
	LocationRecordsCenter StageLocation = "records_center"
	LocationSystem        StageLocation = "system"
)

// ValidStageLocations defines the allowed stage locations.
var ValidStageLocations = map[StageLocation]bool{
	LocationOffice:        true,
	LocationRecordsCenter: true,
	LocationSystem:        true,
}

// FinalDisposition is what happens to records after the last stage.
type FinalDisposition string

const (
	DispositionDestroy   FinalDisposition = "destroy"
	DispositionTransfer  FinalDisposition = "transfer_archives"
	DispositionPermanent FinalDisposition = "permanent"
)

// ValidDispositions defines the allowed final dispositions.
var ValidDispositions = map[FinalDisposition]bool{
	DispositionDestroy:   true,
	DispositionTransfer:  true,
	DispositionPermanent: true,
}

// PDFRef points at the approved schedule document by name/URL only.
// The PDF content itself is never stored.
type PDFRef struct {
	Name  string `json:"name,omitempty"`
	URL   string `json:"url,omitempty"`
	Pages int    `json:"pages,omitempty"`
}

// Schedule is an approved (or draft) records-retention rulebook.
//
// ApplicationNumber is the business key: present only once approval is
// formalized, globally unique among schedules when set, and the only
// value used to match schedules across stores. Drafts have none and are
// never merge targets by key.
type Schedule struct {
	ID                 ScheduleID     `json:"_id,omitempty"`
	ApplicationNumber  *string        `json:"application_number"`
	Title              string         `json:"title"`
	ApprovingBody      string         `json:"approving_body,omitempty"`
	ApprovalStatus     ApprovalStatus `json:"approval_status"`
	ApprovalDate       *string        `json:"approval_date,omitempty"`
	RetentionStatement string         `json:"retention_statement,omitempty"`
	Notes              string         `json:"notes,omitempty"`
	PDF                PDFRef         `json:"pdf,omitzero"`
	Tags               StringList     `json:"tags,omitempty"`
	CreatedAt          time.Time      `json:"created_at,omitzero"`
	UpdatedAt          time.Time      `json:"updated_at,omitzero"`
}

// RetentionStage is one step in a retention plan.
type RetentionStage struct {
	Where StageLocation `json:"where"`
	Years float64       `json:"years"`
}

// Retention is the structured retention plan of a series item.
type Retention struct {
	Trigger          RetentionTrigger `json:"trigger"`
	Stages           []RetentionStage `json:"stages"`
	FinalDisposition FinalDisposition `json:"final_disposition"`
}

// IsPermanent reports whether the plan ends in permanent retention.
func (r Retention) IsPermanent() bool {
	return r.FinalDisposition == DispositionPermanent
}

// Volume holds accumulation metrics for a series item.
type Volume struct {
	PaperCubicFeet        float64 `json:"paper_cubic_feet,omitempty"`
	ElectronicBytes       int64   `json:"electronic_bytes,omitempty"`
	AnnualPaperAccrual    float64 `json:"annual_paper_accrual,omitempty"`
	AnnualElectronicBytes int64   `json:"annual_electronic_bytes,omitempty"`
}

// SeriesItem is one record series belonging to exactly one schedule.
//
// ScheduleID must reference an existing schedule at all times; the
// composite business key (ScheduleID, ItemNumber) is unique. The
// derived RetentionIsPermanent flag is denormalized for filtering and
// must always equal Retention.IsPermanent().
type SeriesItem struct {
	ID                   SeriesID   `json:"_id,omitempty"`
	ScheduleID           ScheduleID `json:"schedule_id"`
	ItemNumber           string     `json:"item_number"`
	Title                string     `json:"title"`
	Description          string     `json:"description,omitempty"`
	DatesCoveredStart    string     `json:"dates_covered_start,omitempty"`
	DatesCoveredEnd      *string    `json:"dates_covered_end"`
	OpenEnded            bool       `json:"open_ended"`
	Arrangement          string     `json:"arrangement,omitempty"`
	Division             string     `json:"division,omitempty"`
	Contact              string     `json:"contact,omitempty"`
	Location             string     `json:"location,omitempty"`
	Retention            Retention  `json:"retention"`
	RetentionIsPermanent bool       `json:"retention_is_permanent"`
	RetentionText        string     `json:"retention_text,omitempty"`
	Volume               Volume     `json:"volume,omitzero"`
	MediaTypes           StringList `json:"media_types,omitempty"`
	StandardRefs         StringList `json:"standard_refs,omitempty"`
	RelatedSeries        StringList `json:"related_series,omitempty"`
	LegalHold            bool       `json:"legal_hold,omitempty"`
	AuditHold            bool       `json:"audit_hold,omitempty"`
	RecordsOfficer       string     `json:"records_officer,omitempty"`
	Representative       string     `json:"representative,omitempty"`
	Notes                string     `json:"notes,omitempty"`
	CreatedAt            time.Time  `json:"created_at,omitzero"`
	UpdatedAt            time.Time  `json:"updated_at,omitzero"`
}

// EntityKind identifies which entity an audit event describes.
type EntityKind string

const (
	KindSchedule EntityKind = "schedule"
	KindSeries   EntityKind = "series"
)

// ValidEntityKinds defines the allowed audit entity kinds.
var ValidEntityKinds = map[EntityKind]bool{
	KindSchedule: true,
	KindSeries:   true,
}

// AuditAction is the kind of mutation an audit event records.
type AuditAction string

const (
	ActionCreate AuditAction = "create"
	ActionUpdate AuditAction = "update"
	ActionDelete AuditAction = "delete"
)

// ValidAuditActions defines the allowed audit actions.
var ValidAuditActions = map[AuditAction]bool{
	ActionCreate: true,
	ActionUpdate: true,
	ActionDelete: true,
}

// AuditEvent is one append-only fact about a mutation.
//
// ID and Seq are assigned by the store on append and are never reused
// from an imported payload. Ordering within an entity's history uses
// Seq (logical clock), never wall time alone.
type AuditEvent struct {
	ID         int64           `json:"_id,omitempty"`
	Seq        int64           `json:"seq,omitempty"`
	EntityKind EntityKind      `json:"entity_kind"`
	EntityID   string          `json:"entity_id"`
	Action     AuditAction     `json:"action"`
	Actor      string          `json:"actor"`
	At         time.Time       `json:"at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// StringList is a JSON array of strings that refuses scalar encodings.
// List-valued fields must never be smuggled in as delimited strings, so
// decoding a JSON string (or anything but an array) is an error.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] != '[' {
		if string(data) == "null" {
			*l = nil
			return nil
		}
		return fmt.Errorf("list-valued field must be a JSON array, got %s", jsonKind(data))
	}
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*l = items
	return nil
}

// jsonKind names the JSON type of an encoded value for error messages.
func jsonKind(data []byte) string {
	if len(data) == 0 {
		return "empty value"
	}
	switch data[0] {
	case '"':
		return "string"
	case '{':
		return "object"
	case 't', 'f':
		return "bool"
	case 'n':
		return "null"
	default:
		return "number"
	}
}
