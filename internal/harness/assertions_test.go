package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrace() []TraceEvent {
	return []TraceEvent{
		{Kind: KindMessage, Seq: 1, Type: "event.created", EventID: "evt-1", Version: 1},
		{Kind: KindStep, Step: 0, Op: OpCreate, Status: "ok", EventID: "evt-1", Version: 1},
		{Kind: KindMessage, Seq: 2, Type: "event.updated", EventID: "evt-1", Version: 2},
		{Kind: KindStep, Step: 1, Op: OpUpdate, Status: "ok", EventID: "evt-1", Version: 2},
		{Kind: KindMessage, Seq: 3, Type: "event.created", EventID: "evt-2", Version: 1},
		{Kind: KindStep, Step: 2, Op: OpCreate, Status: "ok", EventID: "evt-2", Version: 1},
	}
}

func TestAssertTraceContains(t *testing.T) {
	trace := sampleTrace()
	actx := &AssertionContext{Names: map[string]string{"second": "evt-2"}}

	assert.NoError(t, assertTraceContains(trace, Assertion{Message: "event.updated"}, actx))
	assert.NoError(t, assertTraceContains(trace, Assertion{Message: "event.created", Event: "second"}, actx))

	err := assertTraceContains(trace, Assertion{Message: "event.updated", Event: "second"}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "message event.updated for event evt-2")

	err = assertTraceContains(trace, Assertion{Message: "event.deleted"}, actx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found in trace")
}

func TestAssertTraceOrder(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceOrder(trace, Assertion{Messages: []string{"event.created", "event.updated"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Messages: []string{"event.created", "event.created"}}))
	assert.NoError(t, assertTraceOrder(trace, Assertion{Messages: []string{"event.updated", "event.created"}}))

	err := assertTraceOrder(trace, Assertion{Messages: []string{"event.updated", "event.updated"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matched 1 of 2")
}

func TestAssertTraceCount(t *testing.T) {
	trace := sampleTrace()

	assert.NoError(t, assertTraceCount(trace, Assertion{Message: "event.created", Count: 2}))
	assert.NoError(t, assertTraceCount(trace, Assertion{Message: "event.deleted", Count: 0}))

	err := assertTraceCount(trace, Assertion{Message: "event.created", Count: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 occurrences")
}

func TestAssertionError_IncludesTrace(t *testing.T) {
	err := &AssertionError{
		Type:     AssertTraceCount,
		Expected: "1",
		Actual:   "2",
		Trace:    sampleTrace()[:2],
	}
	msg := err.Error()
	assert.Contains(t, msg, "Assertion failed: trace_count")
	assert.Contains(t, msg, "#1 event.created evt-1 v1")
	assert.Contains(t, msg, "step 0 create ok")
}

func TestEvaluateAssertions_FinalStateNeedsContext(t *testing.T) {
	errs := EvaluateAssertions(NewResult(), []Assertion{
		{Type: AssertFinalState, Event: "evt-1", Expect: map[string]interface{}{"exists": true}},
	}, nil)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "requires store context")
}

func TestFinalState_Mismatches(t *testing.T) {
	s, err := ParseScenario([]byte(`
name: final_state_mismatch
description: final_state reports the first mismatched field
organization: acme
steps:
  - as: a
    create: {title: A, start: "09:00", end: "10:00", assignees: [u, v]}
  - cache: {user: u, range_start: "09:00", range_end: "10:00"}
assertions:
  - type: final_state
    event: a
    expect: {title: B}
  - type: final_state
    event: a
    expect: {assignees: [v, u]}
  - type: final_state
    event: a
    expect: {colour: red}
  - type: final_state
    event: evt-7
    expect: {title: A}
  - type: final_state
    event: a
    expect: {exists: false}
  - type: final_state
    user: u
    expect: {busy: 2}
  - type: final_state
    user: nobody
    expect: {exists: true}
`))
	require.NoError(t, err)

	result, err := Run(s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 7)
	assert.Contains(t, result.Errors[0], `field "title" = B`)
	assert.Contains(t, result.Errors[1], `field "assignees"`)
	assert.Contains(t, result.Errors[2], `unknown field "colour"`)
	assert.Contains(t, result.Errors[3], "event evt-7 to exist")
	assert.Contains(t, result.Errors[4], "exists = false")
	assert.Contains(t, result.Errors[5], `field "busy" = 2`)
	assert.Contains(t, result.Errors[6], "cache record acme/nobody exists = true")
}
