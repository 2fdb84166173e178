package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/huddle/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool
	Filter string
}

// Golden file outcomes reported per scenario.
const (
	goldenNone    = "none"
	goldenMatched = "matched"
	goldenUpdated = "updated"
)

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name     string   `json:"name"`
	File     string   `json:"file"`
	Pass     bool     `json:"pass"`
	Golden   string   `json:"golden,omitempty"`
	Steps    int      `json:"steps"`
	Messages int      `json:"messages"`
	Errors   []string `json:"errors,omitempty"`
}

func (r ScenarioResult) String() string {
	mark := "✓"
	if !r.Pass {
		mark = "✗"
	}
	line := fmt.Sprintf("%s %s  %d step(s), %d message(s)", mark, r.Name, r.Steps, r.Messages)
	if r.Golden == goldenUpdated {
		line += ", golden updated"
	}
	for _, e := range r.Errors {
		line += "\n  " + e
	}
	return line
}

// TestResult summarizes a scenario run.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scheduling scenarios",
		Long: `Run scenario files against a fresh in-memory store each, checking step
expectations, assertions, and golden traces.

A scenario's golden file lives at <dir>/golden/<name>.golden. Scenarios
without one are checked by their expectations and assertions only.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  huddle test ./scenarios
  huddle test ./scenarios --filter "stale_*"
  huddle test ./scenarios --update
  huddle test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir))
	}

	files, err := harness.FindScenarios(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	result := TestResult{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	for _, file := range files {
		res := checkScenario(file, opts.Update)
		if res.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if opts.Format != "json" {
			fmt.Fprintln(cmd.OutOrStdout(), res)
		}
		result.Scenarios = append(result.Scenarios, res)
	}

	if opts.Format == "json" {
		return outputTestJSON(cmd, result)
	}
	return outputTestText(cmd, result)
}

// checkScenario runs one scenario file and checks it against its golden
// trace. With update the golden trace is rewritten instead.
func checkScenario(file string, update bool) ScenarioResult {
	res := ScenarioResult{Name: filepath.Base(file), File: file}
	fail := func(format string, args ...any) ScenarioResult {
		res.Pass = false
		res.Errors = append(res.Errors, fmt.Sprintf(format, args...))
		return res
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return fail("failed to load scenario: %v", err)
	}
	res.Name = scenario.Name
	res.Steps = len(scenario.Steps)

	run, err := harness.Run(scenario)
	if err != nil {
		return fail("execution failed: %v", err)
	}
	res.Messages = len(run.Messages())
	res.Pass = run.Pass
	res.Errors = run.Errors
	res.Golden = goldenNone

	goldenPath := harness.GoldenPath(file)
	switch _, statErr := os.Stat(goldenPath); {
	case update:
		if err := harness.WriteGolden(goldenPath, scenario.Name, run); err != nil {
			return fail("failed to update golden file: %v", err)
		}
		res.Golden = goldenUpdated
	case statErr == nil:
		match, err := harness.CompareGolden(goldenPath, scenario.Name, run)
		if err != nil {
			return fail("golden comparison failed: %v", err)
		}
		if !match {
			return fail("trace does not match %s (run with --update to regenerate)", goldenPath)
		}
		res.Golden = goldenMatched
	}
	return res
}

// outputTestJSON writes the run as a CLIResponse; failures carry
// E_TEST_FAILED.
func outputTestJSON(cmd *cobra.Command, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d of %d scenario(s) failed", result.Failed, result.Total),
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return reported(ExitFailure, errors.New(response.Error.Message))
	}
	return nil
}

func outputTestText(cmd *cobra.Command, result TestResult) error {
	w := cmd.OutOrStdout()
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	fmt.Fprintf(w, "\nTest Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	if result.Failed > 0 {
		return reported(ExitFailure, fmt.Errorf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
