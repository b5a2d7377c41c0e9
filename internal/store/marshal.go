package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mwaltman/schedstore/internal/model"
)

// List-valued and structured fields are stored as JSON TEXT columns.
// They are real sequences/objects in the model at all times; the JSON
// encoding exists only at the storage boundary.

func marshalList(l model.StringList) (string, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal(l)
	if err != nil {
		return "", fmt.Errorf("marshal list: %w", err)
	}
	return string(data), nil
}

func unmarshalList(data string) (model.StringList, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var l model.StringList
	if err := json.Unmarshal([]byte(data), &l); err != nil {
		return nil, fmt.Errorf("unmarshal list: %w", err)
	}
	return l, nil
}

func marshalRetention(r model.Retention) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal retention: %w", err)
	}
	return string(data), nil
}

func unmarshalRetention(data string) (model.Retention, error) {
	var r model.Retention
	if err := json.Unmarshal([]byte(data), &r); err != nil {
		return model.Retention{}, fmt.Errorf("unmarshal retention: %w", err)
	}
	return r, nil
}

func marshalVolume(v model.Volume) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal volume: %w", err)
	}
	return string(data), nil
}

func unmarshalVolume(data string) (model.Volume, error) {
	if data == "" || data == "{}" {
		return model.Volume{}, nil
	}
	var v model.Volume
	if err := json.Unmarshal([]byte(data), &v); err != nil {
		return model.Volume{}, fmt.Errorf("unmarshal volume: %w", err)
	}
	return v, nil
}

// Timestamps are stored as RFC 3339 TEXT. Ordering never relies on
// them (seq does that); they exist for humans and export fidelity.

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
	}
	return t, nil
}

// compactJSON strips insignificant whitespace. Imported audit payloads
// arrive pretty-printed from the backup file; local snapshots are
// compact, and the duplicate check compares the stored text.
func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
