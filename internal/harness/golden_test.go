package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "testdata/scenarios"

// TestScenarios runs every scenario under testdata/scenarios and compares
// its trace against testdata/golden/<name>.golden.
func TestScenarios(t *testing.T) {
	paths, err := FindScenarios(scenarioDir)
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		require.NoError(t, err, "failed to load scenario from %s", path)

		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "assertion errors: %v", result.Errors)
		})
	}
}

func TestRunSuite_Directory(t *testing.T) {
	suite, err := RunSuite(scenarioDir)
	require.NoError(t, err)

	paths, err := FindScenarios(scenarioDir)
	require.NoError(t, err)

	assert.Equal(t, len(paths), suite.TotalScenarios)
	assert.Equal(t, suite.TotalScenarios, suite.Passed)
	assert.Zero(t, suite.Failed)
	assert.Empty(t, suite.Failures)
	assert.Len(t, suite.Results, suite.TotalScenarios)
	assert.Contains(t, suite.Results, "tap_performs_action")
}

func TestRunSuite_SingleFile(t *testing.T) {
	suite, err := RunSuite(filepath.Join(scenarioDir, "tap.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1, suite.TotalScenarios)
	assert.Equal(t, 1, suite.Passed)
}

func TestRunSuite_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a_broken.yaml"), "name: [")
	writeFile(t, filepath.Join(dir, "b_failing.yaml"), `
name: failing
description: expects a perform that never happens
inline_config: |`+indent(minimalKeyMaps)+`
steps:
  - down: 24
assertions:
  - type: performed
    action: app(com.camera)
`)
	writeFile(t, filepath.Join(dir, "c_passing.yaml"), `
name: passing
description: a plain tap
inline_config: |`+indent(minimalKeyMaps)+`
steps:
  - tap: 24
assertions:
  - type: idle
`)
	writeFile(t, filepath.Join(dir, "notes.txt"), "not a scenario")

	suite, err := RunSuite(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, suite.TotalScenarios)
	assert.Equal(t, 1, suite.Passed)
	assert.Equal(t, 2, suite.Failed)
	require.Len(t, suite.Failures, 2)

	assert.Empty(t, suite.Failures[0].Scenario)
	assert.Contains(t, suite.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "failing", suite.Failures[1].Scenario)
	assert.Contains(t, suite.Failures[1].Error, "scenario assertions failed")

	assert.Contains(t, suite.Results, "failing")
	assert.Contains(t, suite.Results, "passing")
}

func TestRunSuite_MissingPath(t *testing.T) {
	_, err := RunSuite(filepath.Join(t.TempDir(), "missing"))

	var notFound *ScenarioNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestSnapshot(t *testing.T) {
	result := NewResult()
	result.Trace = sampleTrace()[:2]

	want := "# tap\n" +
		"0s #1 fired volume firing-volume\n" +
		"0s #2 perform volume DOWN_UP key_event(25)\n"
	assert.Equal(t, want, string(Snapshot("tap", result)))
}
