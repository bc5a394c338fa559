package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes content to name inside dir and returns the path.
func writeScenario(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_Inline(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "inline.yaml", `
name: inline
description: inline script
workers: 3
script: |
  x = 1
assertions:
  - type: checksum_ok
  - type: checksum
    value: 60
  - type: script_errors
    count: 0
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, "inline", scenario.Name)
	assert.Equal(t, 3, scenario.Workers)
	assert.Equal(t, "x = 1\n", scenario.Script)
	require.Len(t, scenario.Assertions, 3)
	require.NotNil(t, scenario.Assertions[1].Value)
	assert.Equal(t, int64(60), *scenario.Assertions[1].Value)
	require.NotNil(t, scenario.Assertions[2].Count)
	assert.Equal(t, 0, *scenario.Assertions[2].Count)
	assert.Equal(t, DefaultTimeout, scenario.timeout())
}

func TestLoadScenario_ScriptFileRelative(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "fact.lua"), []byte("x = 1\n"), 0644))

	path := writeScenario(t, dir, "file.yaml", `
name: file
description: script on disk
workers: 1
script_file: scripts/fact.lua
timeout: 2s
assertions:
  - type: checksum_ok
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scripts", "fact.lua"), scenario.ScriptFile)
	assert.Equal(t, "2s", scenario.Timeout)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), "typo.yaml", `
name: typo
description: misspelled key
workers: 1
script: "x = 1"
assertion:
  - type: checksum_ok
`)

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestValidateScenario(t *testing.T) {
	one := 1
	negative := -1
	valid := func() *Scenario {
		return &Scenario{
			Name:        "ok",
			Description: "valid",
			Script:      "x = 1",
			Workers:     2,
			Assertions:  []Assertion{{Type: AssertChecksumOK}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(s *Scenario)
		wantErr string
	}{
		{"valid", func(s *Scenario) {}, ""},
		{"missing name", func(s *Scenario) { s.Name = "" }, "name is required"},
		{"missing description", func(s *Scenario) { s.Description = "" }, "description is required"},
		{"no script", func(s *Scenario) { s.Script = "" }, "one of script or script_file"},
		{"both scripts", func(s *Scenario) { s.ScriptFile = "x.lua" }, "mutually exclusive"},
		{"missing script file", func(s *Scenario) { s.Script = ""; s.ScriptFile = "/nonexistent/x.lua" }, "script file not found"},
		{"zero workers", func(s *Scenario) { s.Workers = 0 }, "workers must be positive"},
		{"bad delays", func(s *Scenario) { s.Delays = "random" }, "unknown delays mode"},
		{"max delays", func(s *Scenario) { s.Delays = DelaysMax }, ""},
		{"bad timeout", func(s *Scenario) { s.Timeout = "soon" }, "invalid timeout"},
		{"negative timeout", func(s *Scenario) { s.Timeout = "-1s" }, "timeout must be positive"},
		{"no assertions", func(s *Scenario) { s.Assertions = nil }, "assertions list is required"},
		{"missing type", func(s *Scenario) { s.Assertions = []Assertion{{}} }, "type is required"},
		{"unknown type", func(s *Scenario) { s.Assertions = []Assertion{{Type: "final_state"}} }, "unknown assertion type"},
		{"checksum without value", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertChecksum}} }, "value is required"},
		{"script_errors without count", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertScriptErrors}} }, "count is required"},
		{"script_errors negative", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertScriptErrors, Count: &negative}} }, "count is required"},
		{"output_contains without text", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertOutputContains}} }, "text is required"},
		{"output_count without text", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertOutputCount, Count: &one}} }, "text is required"},
		{"output_count without count", func(s *Scenario) { s.Assertions = []Assertion{{Type: AssertOutputCount, Text: "x"}} }, "count is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := valid()
			tt.mutate(s)
			err := validateScenario(s)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
