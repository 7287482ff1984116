package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/keyflow/internal/action"
	"github.com/roach88/keyflow/internal/config"
	"github.com/roach88/keyflow/internal/store"
)

// Scenario is a scripted run of the engine: a key map configuration, the
// device facts it sees, a list of timed key steps and assertions on the
// resulting journal.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Config is the path of a key map file, relative to the scenario file.
	Config string `yaml:"config,omitempty"`

	// InlineConfig is a YAML key map document. Exactly one of Config and
	// InlineConfig is set.
	InlineConfig string `yaml:"inline_config,omitempty"`

	// Facts is the initial device state. Steps may replace it.
	Facts config.FactsFile `yaml:"facts,omitempty"`

	// FailKinds makes the sink fail every action of these kinds.
	FailKinds []action.Kind `yaml:"fail_kinds,omitempty"`

	Steps      []Step      `yaml:"steps"`
	Assertions []Assertion `yaml:"assertions"`

	// dir resolves Config; set by LoadScenario.
	dir string
}

// Step is one scenario instruction. Exactly one of its fields is set.
type Step struct {
	Down *int `yaml:"down,omitempty"`
	Up   *int `yaml:"up,omitempty"`

	// Tap is a down immediately followed by an up.
	Tap *int `yaml:"tap,omitempty"`

	// Advance moves virtual time forward, e.g. "250ms".
	Advance string `yaml:"advance,omitempty"`

	// Facts replaces the device state for the following steps.
	Facts *config.FactsFile `yaml:"facts,omitempty"`

	// Reset releases everything and cancels every walk and repeat.
	Reset bool `yaml:"reset,omitempty"`

	// Reload replaces the configuration with the given YAML document.
	Reload string `yaml:"reload,omitempty"`

	// Device marks key steps as coming from the external device with this
	// descriptor.
	Device string `yaml:"device,omitempty"`
	Meta   int    `yaml:"meta,omitempty"`
}

// Assertion checks the trace or journal of a finished run.
type Assertion struct {
	// Type selects the check; see the Assert* constants.
	Type string `yaml:"type"`

	KeyMap string `yaml:"keymap,omitempty"`
	Action string `yaml:"action,omitempty"`
	Event  string `yaml:"event,omitempty"`

	// Signal filters firing_count: "fired", "released" or "blocked".
	Signal string `yaml:"signal,omitempty"`

	Count *int `yaml:"count,omitempty"`

	// Performs is the expected "<EVENT> <action>" order for perform_order.
	Performs []string `yaml:"performs,omitempty"`

	// Expect holds journal summary counts: firings, blocked, performs, failed.
	Expect map[string]int `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertPerformed    = "performed"
	AssertPerformOrder = "perform_order"
	AssertPerformCount = "perform_count"
	AssertFiringCount  = "firing_count"
	AssertJournal      = "journal"
	AssertIdle         = "idle"
)

// LoadScenario reads and parses a scenario YAML file. Config paths are
// resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses a scenario document. dir resolves a relative Config
// path. Unknown fields are rejected.
func ParseScenario(data []byte, dir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.dir = dir

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// ConfigPath returns the resolved key map file path, or "" for inline
// configurations.
func (s *Scenario) ConfigPath() string {
	if s.Config == "" || filepath.IsAbs(s.Config) {
		return s.Config
	}
	return filepath.Join(s.dir, s.Config)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Config == "") == (s.InlineConfig == "") {
		return fmt.Errorf("exactly one of config and inline_config is required")
	}
	if path := s.ConfigPath(); path != "" {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("config file not found: %s", path)
		}
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

func validateStep(step Step) error {
	set := 0
	for _, present := range []bool{
		step.Down != nil, step.Up != nil, step.Tap != nil,
		step.Advance != "", step.Facts != nil, step.Reset, step.Reload != "",
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("exactly one of down, up, tap, advance, facts, reset, reload is required")
	}
	if step.Advance != "" {
		d, err := time.ParseDuration(step.Advance)
		if err != nil {
			return fmt.Errorf("advance: %w", err)
		}
		if d < 0 {
			return fmt.Errorf("advance: must not be negative")
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertPerformed:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for performed", index)
		}
		if a.Event != "" {
			if _, err := action.ParseInputEventType(a.Event); err != nil {
				return fmt.Errorf("assertions[%d]: %w", index, err)
			}
		}
	case AssertPerformOrder:
		if len(a.Performs) == 0 {
			return fmt.Errorf("assertions[%d]: performs list is required for perform_order", index)
		}
	case AssertPerformCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for perform_count", index)
		}
	case AssertFiringCount:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for firing_count", index)
		}
		switch a.Signal {
		case "", store.KindFired, store.KindReleased, "blocked":
		default:
			return fmt.Errorf("assertions[%d]: unknown signal %q", index, a.Signal)
		}
	case AssertJournal:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for journal", index)
		}
		for key := range a.Expect {
			switch key {
			case "firings", "blocked", "performs", "failed":
			default:
				return fmt.Errorf("assertions[%d]: unknown journal count %q", index, key)
			}
		}
	case AssertIdle:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
