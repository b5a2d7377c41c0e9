package exchange

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed payload.cue
var payloadSchemaSrc string

// StructuralError reports that a payload failed top-level shape checks.
// Import aborts with zero mutation when this is returned.
type StructuralError struct {
	Problems []string
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	if len(e.Problems) == 1 {
		return "structural validation failed: " + e.Problems[0]
	}
	return fmt.Sprintf("structural validation failed: %d problems: %s",
		len(e.Problems), strings.Join(e.Problems, "; "))
}

var (
	schemaOnce  sync.Once
	schemaValue cue.Value
)

// payloadSchema compiles the embedded CUE schema once.
func payloadSchema() cue.Value {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		schemaValue = ctx.CompileString(payloadSchemaSrc).LookupPath(cue.MakePath(cue.Def("#Payload")))
	})
	return schemaValue
}

// DecodeDocument parses and structurally validates a payload.
//
// Failure here is the all-or-nothing boundary of an import: a non-nil
// error means the caller must not touch the store. The returned error
// is always a *StructuralError.
func DecodeDocument(data []byte) (*Document, error) {
	var parsed any
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, &StructuralError{Problems: []string{
			fmt.Sprintf("payload is not well-formed JSON: %v", err),
		}}
	}
	if _, ok := parsed.(map[string]any); !ok {
		return nil, &StructuralError{Problems: []string{"payload must be a JSON object"}}
	}

	var problems []string

	// Type-shape check against the CUE schema.
	schema := payloadSchema()
	unified := schema.Unify(schema.Context().Encode(parsed))
	if err := unified.Validate(cue.Concrete(false)); err != nil {
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, e.Error())
		}
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		problems = append(problems, fmt.Sprintf("payload shape: %v", err))
		return nil, &StructuralError{Problems: problems}
	}

	// Presence checks the optional-field schema cannot express.
	if doc.Version != Version {
		problems = append(problems, fmt.Sprintf("unrecognized payload version %d (want %d)", doc.Version, Version))
	}
	if doc.Schedules == nil {
		problems = append(problems, "missing required array: schedules")
	}
	if doc.SeriesItems == nil {
		problems = append(problems, "missing required array: series_items")
	}
	if doc.AuditEvents == nil {
		problems = append(problems, "missing required array: audit_events")
	}

	if len(problems) > 0 {
		return nil, &StructuralError{Problems: problems}
	}
	return &doc, nil
}
