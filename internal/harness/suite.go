package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioNotFoundError is returned when a scenario path doesn't exist.
type ScenarioNotFoundError struct {
	Path string
}

// Error implements the error interface.
func (e *ScenarioNotFoundError) Error() string {
	return fmt.Sprintf("scenario path %q does not exist", e.Path)
}

// FindScenarios returns the scenario files at path: the file itself, or
// every .yaml/.yml file directly inside a directory, sorted.
func FindScenarios(path string) ([]string, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &ScenarioNotFoundError{Path: path}
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario dir: %w", err)
	}
	var out []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		out = append(out, filepath.Join(path, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// SuiteResult contains results from running a set of scenarios.
type SuiteResult struct {
	TotalScenarios int               `json:"total_scenarios"`
	Passed         int               `json:"passed"`
	Failed         int               `json:"failed"`
	Failures       []ScenarioFailure `json:"failures,omitempty"`

	// Results maps scenario names to their results, for passing and
	// failing scenarios alike.
	Results map[string]*Result `json:"-"`

	// Paths maps scenario names to their files.
	Paths map[string]string `json:"-"`
}

// ScenarioFailure represents a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Scenario     string `json:"scenario,omitempty"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// RunSuite loads and runs every scenario at path.
//
// For each scenario file:
// 1. Load the scenario
// 2. Run it via Run
// 3. Collect and report results
//
// Scenario failures are collected, not returned; the error is only for
// an unreadable path.
func RunSuite(path string) (*SuiteResult, error) {
	paths, err := FindScenarios(path)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{
		Results: make(map[string]*Result),
		Paths:   make(map[string]string),
	}
	for _, scenarioPath := range paths {
		result.TotalScenarios++

		scenario, err := LoadScenario(scenarioPath)
		if err != nil {
			result.fail("", scenarioPath, fmt.Sprintf("failed to load scenario: %v", err))
			continue
		}
		result.Paths[scenario.Name] = scenarioPath

		runResult, err := Run(scenario)
		if err != nil {
			result.fail(scenario.Name, scenarioPath, fmt.Sprintf("scenario execution failed: %v", err))
			continue
		}
		result.Results[scenario.Name] = runResult

		if !runResult.Pass {
			result.fail(scenario.Name, scenarioPath, fmt.Sprintf("scenario assertions failed: %v", runResult.Errors))
			continue
		}

		result.Passed++
	}

	return result, nil
}

func (r *SuiteResult) fail(name, path, msg string) {
	r.Failed++
	r.Failures = append(r.Failures, ScenarioFailure{Scenario: name, ScenarioPath: path, Error: msg})
}
