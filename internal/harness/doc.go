// Package harness provides scenario-driven conformance testing for the
// import/export engine.
//
// Scenarios are YAML files describing a sequence of imports against a
// fresh store, executed with a deterministic clock and identity source
// so the resulting summaries and final store content are reproducible
// byte for byte. Each run's snapshot is compared against a golden file.
//
// # Scenario Format
//
//	name: scenario_name
//	description: "What this scenario validates"
//	steps:
//	  - action: import
//	    merge_drafts_by_title: false
//	    payload:
//	      schedules:
//	        - _id: src-1
//	          application_number: "25-012"
//	          title: Fiscal records
//	          approval_status: approved
//	      series_items: []
//	      audit_events: []
//	  - action: export_import
//
// Step actions:
//
//   - import: merge the step's payload into the store
//   - export_import: export the store and immediately re-import the
//     result, which must be a no-op for unchanged data
//
// Payloads are written as YAML for legibility and converted to the
// JSON interchange form before import. The exported_at timestamp and
// version tag are filled in when omitted.
//
// # Golden Files
//
// Snapshots live in testdata/golden/{name}.golden. To regenerate after
// an intentional behavior change:
//
//	go test ./internal/harness -update
package harness
