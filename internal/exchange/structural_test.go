package exchange

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwaltman/schedstore/internal/model"
)

func TestDecodeDocument_Valid(t *testing.T) {
	data := []byte(`{
		"exported_at": "2026-01-02T03:04:05Z",
		"version": 2,
		"agency": {"name": "Department of Examples", "abbrev": "DOE"},
		"schedules": [],
		"series_items": [],
		"audit_events": []
	}`)

	doc, err := DecodeDocument(data)
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Version)
	assert.Equal(t, "DOE", doc.Agency.Abbrev)
	assert.NotNil(t, doc.Schedules)
	assert.Empty(t, doc.Schedules)
}

func TestDecodeDocument_AgencyOptional(t *testing.T) {
	data := []byte(`{
		"exported_at": "2026-01-02T03:04:05Z",
		"version": 2,
		"schedules": [],
		"series_items": [],
		"audit_events": []
	}`)

	_, err := DecodeDocument(data)
	require.NoError(t, err)
}

func TestDecodeDocument_Structural(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{"version": 2,`},
		{"not an object", `[1, 2, 3]`},
		{"missing schedules", `{"exported_at":"x","version":2,"series_items":[],"audit_events":[]}`},
		{"missing series_items", `{"exported_at":"x","version":2,"schedules":[],"audit_events":[]}`},
		{"missing audit_events", `{"exported_at":"x","version":2,"schedules":[],"series_items":[]}`},
		{"wrong version", `{"exported_at":"x","version":7,"schedules":[],"series_items":[],"audit_events":[]}`},
		{"schedules not an array", `{"exported_at":"x","version":2,"schedules":"nope","series_items":[],"audit_events":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeDocument([]byte(tt.data))
			require.Error(t, err)

			var structural *StructuralError
			require.True(t, errors.As(err, &structural), "want *StructuralError, got %T", err)
			assert.NotEmpty(t, structural.Problems)
		})
	}
}

func TestDecodeDocument_CollectsAllProblems(t *testing.T) {
	data := []byte(`{"exported_at":"x","version":7,"audit_events":[]}`)

	_, err := DecodeDocument(data)
	require.Error(t, err)

	var structural *StructuralError
	require.True(t, errors.As(err, &structural))
	// Wrong version plus two missing arrays, at minimum.
	assert.GreaterOrEqual(t, len(structural.Problems), 3)
}

func TestPayload_MarshalRoundTrip(t *testing.T) {
	appNum := "25-012"
	p := &Payload{
		ExportedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Version:    Version,
		Agency:     Agency{Name: "Department of Examples", Abbrev: "DOE"},
		Schedules: []model.Schedule{{
			ID:                "sch-1",
			ApplicationNumber: &appNum,
			Title:             "General schedule",
			ApprovalStatus:    model.StatusApproved,
		}},
		SeriesItems: []model.SeriesItem{},
		AuditEvents: []model.AuditEvent{},
	}

	data, err := p.Marshal()
	require.NoError(t, err)

	doc, err := DecodeDocument(data)
	require.NoError(t, err)
	require.Len(t, doc.Schedules, 1)

	var s model.Schedule
	require.NoError(t, json.Unmarshal(doc.Schedules[0], &s))
	assert.Equal(t, model.ScheduleID("sch-1"), s.ID)
	require.NotNil(t, s.ApplicationNumber)
	assert.Equal(t, "25-012", *s.ApplicationNumber)
}
