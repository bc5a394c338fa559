package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario. Also names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Script is inline Lua source run by every worker.
	// Exactly one of Script and ScriptFile must be set.
	Script string `yaml:"script,omitempty"`

	// ScriptFile is a Lua file, relative to the scenario file location.
	ScriptFile string `yaml:"script_file,omitempty"`

	// Workers is the pool size.
	Workers int `yaml:"workers"`

	// Delays selects the jitter: "zero" (default) or "max".
	// Delays are recorded, never slept.
	Delays string `yaml:"delays,omitempty"`

	// Timeout bounds the whole run as a Go duration string. Defaults to 10s.
	Timeout string `yaml:"timeout,omitempty"`

	// RunID is an optional fixed run ID.
	// If empty, defaults to "test-run-default" for deterministic golden comparison.
	RunID string `yaml:"run_id,omitempty"`

	// Assertions validate the run result.
	// Supported types: checksum_ok, checksum, script_errors, output_contains,
	// output_count, serialized
	Assertions []Assertion `yaml:"assertions"`
}

// Delay modes.
const (
	DelaysZero = "zero"
	DelaysMax  = "max"
)

// DefaultTimeout bounds scenarios that do not set a timeout.
const DefaultTimeout = 10 * time.Second

// Assertion validates one property of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "checksum_ok": final checksum equals 5*N*(N+1)
	// - "checksum": final checksum equals Value
	// - "script_errors": exactly Count executions raised
	// - "output_contains": Text appears in the program output
	// - "output_count": Text appears exactly Count times
	// - "serialized": journal seqs are dense and checksums grow by each contribution
	Type string `yaml:"type"`

	// Value is the expected checksum (used by checksum).
	Value *int64 `yaml:"value,omitempty"`

	// Count is the expected number of occurrences (used by script_errors, output_count).
	Count *int `yaml:"count,omitempty"`

	// Text is the expected output fragment (used by output_contains, output_count).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertChecksumOK     = "checksum_ok"
	AssertChecksum       = "checksum"
	AssertScriptErrors   = "script_errors"
	AssertOutputContains = "output_contains"
	AssertOutputCount    = "output_count"
	AssertSerialized     = "serialized"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	// Resolve the script file relative to the scenario BEFORE validation
	if scenario.ScriptFile != "" && !filepath.IsAbs(scenario.ScriptFile) {
		scenario.ScriptFile = filepath.Join(filepath.Dir(path), scenario.ScriptFile)
	}

	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return scenario, nil
}

// ParseScenario decodes a scenario without validating it.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &scenario, nil
}

// timeout returns the parsed timeout. Only valid after validateScenario.
func (s *Scenario) timeout() time.Duration {
	if s.Timeout == "" {
		return DefaultTimeout
	}
	d, _ := time.ParseDuration(s.Timeout)
	return d
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Script == "" && s.ScriptFile == "":
		return fmt.Errorf("one of script or script_file is required")
	case s.Script != "" && s.ScriptFile != "":
		return fmt.Errorf("script and script_file are mutually exclusive")
	}

	if s.ScriptFile != "" {
		if _, err := os.Stat(s.ScriptFile); os.IsNotExist(err) {
			return fmt.Errorf("script file not found: %s", s.ScriptFile)
		}
	}

	if s.Workers <= 0 {
		return fmt.Errorf("workers must be positive, got %d", s.Workers)
	}

	switch s.Delays {
	case "", DelaysZero, DelaysMax:
	default:
		return fmt.Errorf("unknown delays mode %q (use %q or %q)", s.Delays, DelaysZero, DelaysMax)
	}

	if s.Timeout != "" {
		d, err := time.ParseDuration(s.Timeout)
		if err != nil {
			return fmt.Errorf("invalid timeout: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", s.Timeout)
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

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertChecksumOK, AssertSerialized:
	case AssertChecksum:
		if a.Value == nil {
			return fmt.Errorf("assertions[%d]: value is required for checksum", index)
		}
	case AssertScriptErrors:
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for script_errors", index)
		}
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertOutputCount:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_count", index)
		}
		if a.Count == nil || *a.Count < 0 {
			return fmt.Errorf("assertions[%d]: non-negative count is required for output_count", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
