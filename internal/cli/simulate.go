package cli

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/keyflow/internal/harness"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Trace  bool   // print each scenario's trace
	Golden string // directory of <name>.golden files to compare against
	Update bool   // rewrite golden files instead of comparing
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path,omitempty"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
	Trace  []string `json:"trace,omitempty"`
}

// SimulateResult holds the overall simulation result.
type SimulateResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <scenario-file-or-dir>",
		Short: "Run scenarios on virtual time",
		Long: `Run YAML scenarios against the engine on a virtual clock and check
their assertions. A directory runs every .yaml/.yml file in it.

With --golden, each trace is also compared with <dir>/<name>.golden;
--update rewrites those files instead.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing path, unwritable golden dir)

Examples:
  keyflow simulate scenarios/
  keyflow simulate scenarios/tap.yaml --trace
  keyflow simulate scenarios/ --golden scenarios/golden --update`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Trace, "trace", false, "print each scenario's trace")
	cmd.Flags().StringVar(&opts.Golden, "golden", "", "directory of golden trace files")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")

	return cmd
}

func runSimulate(opts *SimulateOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	suite, err := harness.RunSuite(path)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			_ = formatter.Error("E_NOT_FOUND", err.Error(), nil)
			return WrapExitError(ExitCommandError, "scenario path not found", err)
		}
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}
	if opts.Update && opts.Golden != "" {
		if err := os.MkdirAll(opts.Golden, 0755); err != nil {
			return WrapExitError(ExitCommandError, "failed to create golden directory", err)
		}
	}

	result := SimulateResult{Scenarios: []ScenarioResult{}}
	for _, f := range suite.Failures {
		if f.Scenario != "" {
			continue
		}
		// Scenarios that failed to load have no result.
		result.Scenarios = append(result.Scenarios, ScenarioResult{
			Name:   filepath.Base(f.ScenarioPath),
			Path:   f.ScenarioPath,
			Errors: []string{f.Error},
		})
	}

	names := make([]string, 0, len(suite.Results))
	for name := range suite.Results {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sr, err := scenarioResult(opts, name, suite)
		if err != nil {
			return err
		}
		result.Scenarios = append(result.Scenarios, sr)
	}
	for _, f := range suite.Failures {
		if f.Scenario != "" && suite.Results[f.Scenario] == nil {
			result.Scenarios = append(result.Scenarios, ScenarioResult{
				Name:   f.Scenario,
				Path:   f.ScenarioPath,
				Errors: []string{f.Error},
			})
		}
	}

	for _, sr := range result.Scenarios {
		result.Total++
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if formatter.JSON() {
		var cliErr *CLIError
		if result.Failed > 0 {
			cliErr = &CLIError{Code: "E_SCENARIO_FAILED", Message: fmt.Sprintf("%d scenario(s) failed", result.Failed)}
		}
		if err := formatter.Result(result, cliErr); err != nil {
			return err
		}
	} else {
		outputSimulateText(cmd, opts, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

func scenarioResult(opts *SimulateOptions, name string, suite *harness.SuiteResult) (ScenarioResult, error) {
	res := suite.Results[name]
	sr := ScenarioResult{Name: name, Path: suite.Paths[name], Pass: res.Pass, Errors: res.Errors}
	if opts.Trace {
		for _, e := range res.Trace {
			sr.Trace = append(sr.Trace, e.String())
		}
	}
	if opts.Golden == "" {
		return sr, nil
	}

	goldenPath := filepath.Join(opts.Golden, name+".golden")
	snapshot := harness.Snapshot(name, res)
	if opts.Update {
		if err := os.WriteFile(goldenPath, snapshot, 0644); err != nil {
			return sr, WrapExitError(ExitCommandError, "failed to write golden file", err)
		}
		return sr, nil
	}

	want, err := os.ReadFile(goldenPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("golden file %s not found (run with --update)", goldenPath))
	case err != nil:
		return sr, WrapExitError(ExitCommandError, "failed to read golden file", err)
	case !bytes.Equal(want, snapshot):
		sr.Pass = false
		sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return sr, nil
}

func outputSimulateText(cmd *cobra.Command, opts *SimulateOptions, result SimulateResult) {
	w := cmd.OutOrStdout()

	for _, sr := range result.Scenarios {
		mark := "✓"
		if !sr.Pass {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s\n", mark, sr.Name)
		for _, e := range sr.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		if opts.Trace {
			for _, line := range sr.Trace {
				fmt.Fprintf(w, "    %s\n", line)
			}
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Simulation Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}
