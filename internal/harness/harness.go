package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mwaltman/schedstore/internal/exchange"
	"github.com/mwaltman/schedstore/internal/model"
	"github.com/mwaltman/schedstore/internal/reconcile"
	"github.com/mwaltman/schedstore/internal/store"
	"github.com/mwaltman/schedstore/internal/testutil"
)

// StepResult captures the summary of one executed step.
type StepResult struct {
	Action  string
	Summary *reconcile.Summary
}

// ScheduleState is one schedule and its series items in final-state
// order.
type ScheduleState struct {
	Schedule model.Schedule
	Items    []model.SeriesItem
}

// Result is the outcome of running a scenario.
type Result struct {
	Steps       []StepResult
	Schedules   []ScheduleState
	AuditEvents int64
}

// Run executes a scenario against a fresh in-memory store with a
// frozen clock and sequential identity source, so two runs of the
// same scenario produce identical results.
func Run(scenario *Scenario) (*Result, error) {
	ctx := context.Background()

	ids := testutil.NewIDSequence("id")
	s, err := store.Open(":memory:",
		store.WithNow(testutil.FixedClock()),
		store.WithIDSource(ids.Next),
		store.WithActor("harness"),
	)
	if err != nil {
		return nil, fmt.Errorf("harness: open store: %w", err)
	}
	defer s.Close()

	logger := slog.New(slog.DiscardHandler)
	result := &Result{}

	for i, step := range scenario.Steps {
		var summary *reconcile.Summary

		switch step.Action {
		case ActionImport:
			data, err := payloadJSON(step.Payload)
			if err != nil {
				return nil, fmt.Errorf("harness: steps[%d]: %w", i, err)
			}
			imp := reconcile.NewImporter(s, reconcile.Options{
				MergeDraftsByTitle: step.MergeDraftsByTitle,
				Logger:             logger,
			})
			summary, err = imp.Import(ctx, data)
			if err != nil {
				return nil, fmt.Errorf("harness: steps[%d]: import: %w", i, err)
			}

		case ActionExportImport:
			payload, err := reconcile.NewExporter(s, logger).Export(ctx, exchange.Agency{}, reconcile.ExportFilter{})
			if err != nil {
				return nil, fmt.Errorf("harness: steps[%d]: export: %w", i, err)
			}
			data, err := payload.Marshal()
			if err != nil {
				return nil, fmt.Errorf("harness: steps[%d]: marshal: %w", i, err)
			}
			imp := reconcile.NewImporter(s, reconcile.Options{Logger: logger})
			summary, err = imp.Import(ctx, data)
			if err != nil {
				return nil, fmt.Errorf("harness: steps[%d]: reimport: %w", i, err)
			}
		}

		result.Steps = append(result.Steps, StepResult{Action: step.Action, Summary: summary})
	}

	schedules, err := s.Schedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("harness: read final state: %w", err)
	}
	for _, sch := range schedules {
		items, err := s.SeriesForSchedule(ctx, sch.ID)
		if err != nil {
			return nil, fmt.Errorf("harness: read final state: %w", err)
		}
		result.Schedules = append(result.Schedules, ScheduleState{Schedule: sch, Items: items})
	}

	result.AuditEvents, err = s.AuditCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("harness: read final state: %w", err)
	}

	return result, nil
}

// payloadJSON converts a YAML payload to the JSON interchange form,
// filling in the version tag and export timestamp when the scenario
// omits them.
func payloadJSON(payload map[string]interface{}) ([]byte, error) {
	doc := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		doc[k] = v
	}
	if _, ok := doc["exported_at"]; !ok {
		doc["exported_at"] = testutil.FixedTime.Format(time.RFC3339)
	}
	if _, ok := doc["version"]; !ok {
		doc["version"] = exchange.Version
	}
	for _, key := range []string{"schedules", "series_items", "audit_events"} {
		if _, ok := doc[key]; !ok {
			doc[key] = []interface{}{}
		}
	}

	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}
