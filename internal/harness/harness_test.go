package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadAndRun(t *testing.T, path string) *Result {
	t.Helper()
	s, err := LoadScenario(path)
	require.NoError(t, err)
	result, err := Run(s)
	require.NoError(t, err)
	return result
}

func TestRun_SharedFreeTime(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/shared_free_time.yaml")
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Errors)

	// message + 4 steps
	require.Len(t, result.Trace, 5)
	assert.Equal(t, KindMessage, result.Trace[0].Kind)
	assert.Equal(t, "event.created", result.Trace[0].Type)
	assert.Equal(t, int64(1), result.Trace[0].Seq)
	assert.Equal(t, "evt-1", result.Trace[0].EventID)

	avail := result.Trace[3]
	assert.Equal(t, OpAvailability, avail.Op)
	assert.Len(t, avail.Windows, 3)
	assert.Len(t, avail.Conflicts["user-1"], 1)
	assert.Equal(t, "Planning", avail.Conflicts["user-1"][0].Label)

	last := result.Trace[4]
	assert.Equal(t, "error", last.Status)
	assert.Equal(t, "EVENT_CONFLICT", last.Error)
}

func TestRun_EventLifecycle(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/event_lifecycle.yaml")
	assert.True(t, result.Pass, result.Errors)

	var types []string
	for _, m := range result.Messages() {
		types = append(types, m.Type)
	}
	assert.Equal(t, []string{"event.created", "event.updated", "event.created", "event.deleted"}, types)

	msgs := result.Messages()
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
	}
	// The deletion message carries the pre-deletion version.
	assert.Equal(t, int64(2), msgs[3].Version)
}

func TestRun_StaleCache(t *testing.T) {
	result := loadAndRun(t, "testdata/scenarios/stale_cache.yaml")
	assert.True(t, result.Pass, result.Errors)
	assert.Empty(t, result.Messages())
}

func TestRun_UnexpectedOutcomesAreReported(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: failing
description: every expectation is wrong
organization: acme
steps:
  - create: {title: A, start: "09:00", end: "10:00", assignees: [u]}
    expect: {version: 3}
  - create: {title: B, start: "09:30", end: "10:30", assignees: [u]}
  - availability: {users: [u], range_start: "09:00", range_end: "11:00"}
    expect:
      windows: [["09:00", "11:00"]]
      conflicts: {u: [evt-9]}
  - delete: {event: evt-1}
    expect: {error: EVENT_NOT_FOUND}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 5)
	assert.Contains(t, result.Errors[0], "expected version 3, got 1")
	assert.Contains(t, result.Errors[1], "unexpected error EVENT_CONFLICT")
	assert.Contains(t, result.Errors[2], "expected windows")
	assert.Contains(t, result.Errors[3], "expected conflicts for u")
	assert.Contains(t, result.Errors[4], "expected error EVENT_NOT_FOUND")
}

func TestRun_StepOrganizationOverride(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: two_orgs
description: organizations are isolated
organization: acme
steps:
  - create: {title: A, start: "09:00", end: "10:00", assignees: [u]}
  - organization: globex
    create: {title: B, start: "09:00", end: "10:00", assignees: [u]}
  - organization: globex
    availability: {users: [u], range_start: "09:00", range_end: "10:00"}
    expect:
      windows: []
      conflicts: {u: [evt-2]}
assertions:
  - type: trace_count
    message: event.created
    count: 2
  - type: final_state
    organization: globex
    event: evt-2
    expect: {title: B}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, result.Errors)
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/event_lifecycle.yaml")
	require.NoError(t, err)

	first, err := Run(s)
	require.NoError(t, err)
	second, err := Run(s)
	require.NoError(t, err)

	a, err := Snapshot(s.Name, first)
	require.NoError(t, err)
	b, err := Snapshot(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}
