// Package exchange defines the interchange payload produced by export
// and consumed by import, plus the structural validation gate that
// every incoming payload must pass before any mutation is attempted.
//
// Structural validation covers only the top-level shape: a recognized
// version tag and the presence of the three entity arrays. Per-record
// domain rules are the model validators' job and are deliberately not
// enforced here, so a payload with some bad records can still partially
// import.
package exchange

import (
	"encoding/json"
	"time"

	"github.com/mwaltman/schedstore/internal/model"
)

// Version is the interchange format version this build reads and
// writes.
const Version = 2

// Agency identifies the organization a backup belongs to. Carried as
// payload metadata only; the store holds no agency entity.
type Agency struct {
	Name   string `json:"name"`
	Abbrev string `json:"abbrev"`
}

// Payload is the export shape: the full (or filtered) store content.
// It is the exact inverse of what import consumes.
type Payload struct {
	ExportedAt  time.Time          `json:"exported_at"`
	Version     int                `json:"version"`
	Agency      Agency             `json:"agency"`
	Schedules   []model.Schedule   `json:"schedules"`
	SeriesItems []model.SeriesItem `json:"series_items"`
	AuditEvents []model.AuditEvent `json:"audit_events"`
}

// Marshal renders a payload as indented JSON for the backup file.
func (p *Payload) Marshal() ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

// Document is the import-side view of a payload: top-level structure
// decoded, individual records still raw. Records are decoded one at a
// time during reconciliation so a malformed record is a per-record
// warning, not a payload-level failure.
type Document struct {
	ExportedAt  string            `json:"exported_at"`
	Version     int               `json:"version"`
	Agency      Agency            `json:"agency"`
	Schedules   []json.RawMessage `json:"schedules"`
	SeriesItems []json.RawMessage `json:"series_items"`
	AuditEvents []json.RawMessage `json:"audit_events"`
}
