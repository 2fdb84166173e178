// Package harness runs scheduling scenarios end to end and checks their
// outcome.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: double_booking
//	description: "A shared assignee blocks an overlapping event"
//	organization: acme
//	date: 2026-01-05
//	steps:
//	  - create: {title: Planning, start: "09:00", end: "10:00", assignees: [user-1]}
//	    as: planning
//	  - create: {title: Review, start: "09:30", end: "11:00", assignees: [user-1, user-2]}
//	    expect: {error: EVENT_CONFLICT}
//	  - availability: {users: [user-1, user-2], range_start: "09:00", range_end: "12:00"}
//	    expect:
//	      windows: [["10:00", "12:00"]]
//	      conflicts: {user-1: [planning], user-2: []}
//	assertions:
//	  - type: trace_count
//	    message: event.created
//	    count: 1
//	  - type: final_state
//	    event: planning
//	    expect: {version: 1}
//
// Times are either RFC 3339 timestamps or "HH:MM" on the scenario date.
// An "as" name can be used wherever an event ID is expected.
//
// # Steps
//
//   - create, update, delete: Event Store operations
//   - cache, clear_cache: Availability Cache operations
//   - availability: a window query
//   - advance: moves the clock forward by a Go duration
//
// # Assertion Types
//
//   - trace_contains: a bus message of the given type (and event) was published
//   - trace_order: message types appear in this relative order
//   - trace_count: a message type was published exactly N times
//   - final_state: the stored event or cache record matches expected fields
//
// # Deterministic Testing
//
// Every run uses a fresh in-memory SQLite database, a frozen clock that only
// moves on advance steps, and sequential event IDs (evt-1, evt-2, ...), so
// the same scenario always yields the same trace. Traces serialize to
// canonical JSON for golden file comparison.
package harness
