package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot renders a result as deterministic plain text for golden
// comparison: per-step summaries followed by the final store content.
// Identities are sequence-assigned and timestamps frozen, so the text
// is stable across runs.
func Snapshot(scenarioName string, result *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", scenarioName)
	b.WriteString("\n")

	for i, step := range result.Steps {
		s := step.Summary
		fmt.Fprintf(&b, "step %d (%s): schedules %d created %d updated, series %d created %d updated, audit %d appended, rejected %d\n",
			i+1, step.Action,
			s.SchedulesCreated, s.SchedulesUpdated,
			s.SeriesCreated, s.SeriesUpdated,
			s.AuditAppended, s.Rejected())
		for _, w := range s.Warnings {
			fmt.Fprintf(&b, "  warning %s\n", w)
		}
	}

	b.WriteString("\nfinal state:\n")
	for _, state := range result.Schedules {
		number := "-"
		if state.Schedule.ApplicationNumber != nil {
			number = *state.Schedule.ApplicationNumber
		}
		fmt.Fprintf(&b, "schedule %s [%s] %q\n", number, state.Schedule.ApprovalStatus, state.Schedule.Title)
		for _, item := range state.Items {
			fmt.Fprintf(&b, "  item %s %q\n", item.ItemNumber, item.Title)
		}
	}
	fmt.Fprintf(&b, "audit events: %d\n", result.AuditEvents)

	return []byte(b.String())
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files after an intentional behavior change:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, Snapshot(scenario.Name, result))

	return nil
}
