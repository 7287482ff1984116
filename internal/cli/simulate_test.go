package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	scenariosDir = filepath.Join("..", "harness", "testdata", "scenarios")
	goldenDir    = filepath.Join("..", "harness", "testdata", "golden")
)

const failingScenario = `
name: wrong_action
inline_config: |
  keymaps:
    - uid: vol
      trigger:
        keys:
          - key_code: 24
      actions:
        - kind: key_event
          key_code: 25
steps:
  - down: 24
  - up: 24
assertions:
  - type: performed
    action: key_event(99)
`

func TestSimulate_Directory(t *testing.T) {
	out, _, err := execute(t, "", "simulate", scenariosDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ tap_performs_action\n")
	assert.Contains(t, out, "✓ parallel_chord_holds_until_release\n")
	assert.Contains(t, out, "Simulation Summary: 8 passed, 0 failed, 8 total")
}

func TestSimulate_SingleFileWithTrace(t *testing.T) {
	out, _, err := execute(t, "", "simulate", "--trace", filepath.Join(scenariosDir, "tap.yaml"))
	require.NoError(t, err)

	assert.Contains(t, out, "✓ tap_performs_action\n")
	assert.Contains(t, out, "    0s #2 perform volume_up DOWN_UP key_event(25)\n")
	assert.Contains(t, out, "Simulation Summary: 1 passed, 0 failed, 1 total")
}

func TestSimulate_JSON(t *testing.T) {
	out, _, err := execute(t, "", "--format", "json", "simulate", filepath.Join(scenariosDir, "chord.yaml"))
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   SimulateResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data.Scenarios, 1)
	sr := resp.Data.Scenarios[0]
	assert.Equal(t, "parallel_chord_holds_until_release", sr.Name)
	assert.Equal(t, filepath.Join(scenariosDir, "chord.yaml"), sr.Path)
	assert.True(t, sr.Pass)
}

func TestSimulate_Failure(t *testing.T) {
	path := writeConfig(t, "wrong.yaml", failingScenario)

	out, _, err := execute(t, "", "--format", "json", "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_SCENARIO_FAILED", resp.Error.Code)
}

func TestSimulate_LoadFailure(t *testing.T) {
	path := writeConfig(t, "broken.yaml", "name: [")

	out, _, err := execute(t, "", "simulate", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ broken.yaml\n")
	assert.Contains(t, out, "failed to load scenario")
}

func TestSimulate_MissingPath(t *testing.T) {
	_, _, err := execute(t, "", "simulate", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestSimulate_GoldenCompare(t *testing.T) {
	out, _, err := execute(t, "", "simulate", "--golden", goldenDir, scenariosDir)
	require.NoError(t, err)
	assert.Contains(t, out, "8 passed, 0 failed")
}

func TestSimulate_GoldenUpdateThenCompare(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "golden")
	tap := filepath.Join(scenariosDir, "tap.yaml")

	_, _, err := execute(t, "", "simulate", "--golden", dir, tap)
	require.Error(t, err, "missing golden file fails the scenario")

	_, _, err = execute(t, "", "simulate", "--golden", dir, "--update", tap)
	require.NoError(t, err)

	written, err := os.ReadFile(filepath.Join(dir, "tap_performs_action.golden"))
	require.NoError(t, err)
	want, err := os.ReadFile(filepath.Join(goldenDir, "tap_performs_action.golden"))
	require.NoError(t, err)
	assert.Equal(t, string(want), string(written))

	_, _, err = execute(t, "", "simulate", "--golden", dir, tap)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tap_performs_action.golden"), []byte("# stale\n"), 0644))
	out, _, err := execute(t, "", "simulate", "--golden", dir, tap)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}
