package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
)

// Snapshot renders the trace of a run as canonical JSON. Golden files hold
// exactly these bytes.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	trace := make([]any, len(result.Trace))
	for i, event := range result.Trace {
		trace[i] = traceToCanonical(event)
	}
	return model.MarshalCanonical(map[string]any{
		"scenario": scenarioName,
		"trace":    trace,
	})
}

// traceToCanonical converts a trace event to canonical-ready values.
// Empty optional fields are omitted.
func traceToCanonical(event TraceEvent) map[string]any {
	m := map[string]any{"kind": event.Kind}
	if event.Kind == KindMessage {
		m["seq"] = event.Seq
		m["type"] = event.Type
	} else {
		m["step"] = event.Step
		m["op"] = event.Op
		m["status"] = event.Status
	}
	if event.Error != "" {
		m["error"] = event.Error
	}
	if event.EventID != "" {
		m["event_id"] = event.EventID
	}
	if event.Version != 0 {
		m["version"] = event.Version
	}
	if event.Op == OpAvailability && event.Status == "ok" {
		m["windows"] = spansToCanonical(event.Windows)
		conflicts := make(map[string]any, len(event.Conflicts))
		for user, list := range event.Conflicts {
			conflicts[user] = busyToCanonical(list)
		}
		m["conflicts"] = conflicts
	}
	return m
}

func spansToCanonical(spans []interval.Span) []any {
	out := make([]any, len(spans))
	for i, s := range spans {
		out[i] = map[string]any{"start": s.Start, "end": s.End}
	}
	return out
}

func busyToCanonical(list []model.UserBusy) []any {
	out := make([]any, len(list))
	for i, b := range list {
		m := map[string]any{
			"start":        b.Start,
			"end":          b.End,
			"source":       b.Source,
			"reference_id": b.ReferenceID,
		}
		if b.Label != "" {
			m["label"] = b.Label
		}
		out[i] = m
	}
	return out
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file.
// This is useful when you've already run a scenario and want to compare
// the result against a golden file without re-running.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	traceJSON, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)

	return nil
}
