package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/huddle/internal/availability"
	"github.com/roach88/huddle/internal/model"
	"github.com/roach88/huddle/internal/schedule"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			if event.Kind == KindMessage {
				fmt.Fprintf(&buf, "  [%d] #%d %s %s v%d\n", i+1, event.Seq, event.Type, event.EventID, event.Version)
			} else {
				fmt.Fprintf(&buf, "  [%d] step %d %s %s%s\n", i+1, event.Step, event.Op, event.Status, suffix(event.Error))
			}
		}
	}

	return buf.String()
}

func suffix(s string) string {
	if s == "" {
		return ""
	}
	return " " + s
}

// AssertionContext provides the components final_state assertions read.
type AssertionContext struct {
	Ctx          context.Context
	Events       *schedule.Store
	Cache        *availability.Cache
	Organization string

	// Day anchors "HH:MM" times in expected values.
	Day time.Time

	// Names maps "as" aliases to event IDs.
	Names map[string]string
}

func (a *AssertionContext) resolve(name string) string {
	if id, ok := a.Names[name]; ok {
		return id
	}
	return name
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides component access for final_state assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion, actx)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertFinalState:
			if actx == nil || actx.Events == nil || actx.Cache == nil {
				err = fmt.Errorf("assertion[%d]: final_state requires store context", i)
			} else {
				err = assertFinalState(actx, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

// assertTraceContains checks that a message of the given type was
// delivered, optionally about a specific event.
func assertTraceContains(trace []TraceEvent, assertion Assertion, actx *AssertionContext) error {
	eventID := assertion.Event
	if actx != nil && eventID != "" {
		eventID = actx.resolve(eventID)
	}
	for _, event := range trace {
		if event.Kind != KindMessage || event.Type != assertion.Message {
			continue
		}
		if eventID == "" || event.EventID == eventID {
			return nil
		}
	}

	expected := "message " + assertion.Message
	if eventID != "" {
		expected += " for event " + eventID
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the listed message types appear in order.
// Messages don't need to be consecutive (intervening messages are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	next := 0
	for _, event := range trace {
		if next == len(assertion.Messages) {
			break
		}
		if event.Kind == KindMessage && event.Type == assertion.Messages[next] {
			next++
		}
	}
	if next == len(assertion.Messages) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("messages in order: %v", assertion.Messages),
		Actual:   fmt.Sprintf("matched %d of %d, missing %s", next, len(assertion.Messages), assertion.Messages[next]),
		Trace:    trace,
	}
}

// assertTraceCount checks that the message type appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Kind == KindMessage && event.Type == assertion.Message {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Message),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

// assertFinalState checks an event or cache record against expected fields
// using subset semantics. The special field "exists" checks presence.
func assertFinalState(actx *AssertionContext, assertion Assertion) error {
	org := actx.Organization
	if assertion.Organization != "" {
		org = assertion.Organization
	}

	var (
		actual map[string]interface{}
		found  bool
		what   string
	)
	if assertion.Event != "" {
		id := actx.resolve(assertion.Event)
		what = "event " + id
		e, err := actx.Events.GetEvent(actx.Ctx, id)
		switch {
		case model.IsNotFound(err):
		case err != nil:
			return fmt.Errorf("final_state: %w", err)
		default:
			found = true
			actual = map[string]interface{}{
				"title":     e.Title,
				"version":   e.Version,
				"start":     e.Start,
				"end":       e.End,
				"assignees": e.Assignees,
			}
		}
	} else {
		what = "cache record " + org + "/" + assertion.User
		rec, ok, err := actx.Cache.GetCacheRecord(actx.Ctx, org, assertion.User)
		if err != nil {
			return fmt.Errorf("final_state: %w", err)
		}
		if ok {
			found = true
			actual = map[string]interface{}{
				"busy":        int64(len(rec.Busy)),
				"range_start": rec.RangeStart,
				"range_end":   rec.RangeEnd,
			}
		}
	}

	if want, ok := assertion.Expect["exists"]; ok {
		if b, isBool := want.(bool); !isBool || b != found {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s exists = %v", what, want),
				Actual:   fmt.Sprintf("exists = %v", found),
			}
		}
	}
	if !found {
		if _, ok := assertion.Expect["exists"]; !ok || len(assertion.Expect) > 1 {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: what + " to exist",
				Actual:   "not found",
			}
		}
		return nil
	}

	keys := make([]string, 0, len(assertion.Expect))
	for k := range assertion.Expect {
		if k != "exists" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, key := range keys {
		expectedValue := assertion.Expect[key]
		actualValue, exists := actual[key]
		if !exists {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("field %q of %s", key, what),
				Actual:   fmt.Sprintf("unknown field %q", key),
			}
		}
		if !stateValuesEqual(actx, expectedValue, actualValue) {
			return &AssertionError{
				Type:     AssertFinalState,
				Expected: fmt.Sprintf("%s field %q = %v", what, key, expectedValue),
				Actual:   fmt.Sprintf("field %q = %v", key, actualValue),
			}
		}
	}
	return nil
}

// stateValuesEqual compares a YAML-decoded expected value with a field of
// the stored state. Times may be written as "HH:MM" on the scenario date or
// RFC 3339.
func stateValuesEqual(actx *AssertionContext, expected, actual interface{}) bool {
	switch act := actual.(type) {
	case string:
		exp, ok := expected.(string)
		return ok && exp == act
	case int64:
		switch exp := expected.(type) {
		case int:
			return int64(exp) == act
		case int64:
			return exp == act
		}
		return false
	case time.Time:
		exp, ok := expected.(string)
		if !ok {
			return false
		}
		t, err := parseTime(actx.Day, exp)
		return err == nil && t.Equal(act)
	case []string:
		exp, ok := expected.([]interface{})
		if !ok || len(exp) != len(act) {
			return false
		}
		for i := range exp {
			if s, ok := exp[i].(string); !ok || s != act[i] {
				return false
			}
		}
		return true
	}
	return false
}
