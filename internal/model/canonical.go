package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Snapshot produces a deterministic canonical JSON encoding of a value.
//
// Snapshots are the currency of change detection and audit payloads:
// two logically equal records must produce byte-identical snapshots, so
// a re-imported unchanged backup can be recognized as a no-op. The
// encoding is compact JSON with object keys sorted, strings NFC
// normalized, no HTML escaping, and number literals preserved exactly
// as encoding/json renders them.
func Snapshot(v any) (string, error) {
	// Round-trip through encoding/json so struct tags apply, then
	// decode with json.Number to keep number literals verbatim.
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}

	var buf bytes.Buffer
	if err := writeCanonical(&buf, decoded); err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	return buf.String(), nil
}

// ScheduleSnapshot is the canonical snapshot of a schedule's state.
// Timestamps are excluded: they change on every write and would defeat
// no-op detection.
func ScheduleSnapshot(s Schedule) (string, error) {
	s.CreatedAt = time.Time{}
	s.UpdatedAt = time.Time{}
	return Snapshot(s)
}

// SeriesSnapshot is the canonical snapshot of a series item's state,
// timestamps excluded.
func SeriesSnapshot(i SeriesItem) (string, error) {
	i.CreatedAt = time.Time{}
	i.UpdatedAt = time.Time{}
	return Snapshot(i)
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch val := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if val {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		buf.WriteString(string(val))
	case string:
		return writeCanonicalString(buf, val)
	case []any:
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, elem); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonicalString(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeCanonical(buf, val[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("unsupported type in canonical JSON: %T", v)
	}
	return nil
}

// writeCanonicalString writes an NFC-normalized JSON string without
// HTML escaping.
func writeCanonicalString(buf *bytes.Buffer, s string) error {
	normalized := norm.NFC.String(s)

	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return err
	}
	buf.WriteString(strings.TrimSuffix(tmp.String(), "\n"))
	return nil
}
