package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Step actions.
const (
	ActionImport       = "import"
	ActionExportImport = "export_import"
)

// Scenario defines one conformance scenario: a named sequence of
// import steps run against a fresh deterministic store.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Steps run in order against the same store.
	Steps []Step `yaml:"steps"`
}

// Step is one action in a scenario.
type Step struct {
	// Action is "import" or "export_import".
	Action string `yaml:"action"`

	// MergeDraftsByTitle enables the optional draft title-merge mode
	// for this step's import.
	MergeDraftsByTitle bool `yaml:"merge_drafts_by_title,omitempty"`

	// Payload is the interchange payload in YAML form. Required for
	// import steps; ignored for export_import.
	Payload map[string]interface{} `yaml:"payload,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "step:" vs "steps:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		switch step.Action {
		case ActionImport:
			if step.Payload == nil {
				return fmt.Errorf("steps[%d]: payload is required for import", i)
			}
		case ActionExportImport:
			if step.Payload != nil {
				return fmt.Errorf("steps[%d]: export_import takes no payload", i)
			}
		case "":
			return fmt.Errorf("steps[%d]: action is required", i)
		default:
			return fmt.Errorf("steps[%d]: unknown action %q", i, step.Action)
		}
	}

	return nil
}
