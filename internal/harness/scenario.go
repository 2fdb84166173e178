package harness

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/huddle/internal/availability"
)

// DefaultDate anchors "HH:MM" times when a scenario names no date.
const DefaultDate = "2026-01-05"

// DefaultOrganization is used when neither the scenario nor a step names one.
const DefaultOrganization = "org"

// Scenario defines a scheduling scenario: a sequence of operations with
// expected outcomes, followed by assertions on the trace and final state.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Organization is the default organization for every step.
	Organization string `yaml:"organization,omitempty"`

	// Date is the YYYY-MM-DD day that "HH:MM" times refer to. The clock
	// starts at midnight UTC of this day.
	Date string `yaml:"date,omitempty"`

	// Policy configures the availability engine.
	Policy *PolicySpec `yaml:"policy,omitempty"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace and state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// PolicySpec mirrors availability.Policy in scenario files.
type PolicySpec struct {
	Uncovered    string `yaml:"uncovered,omitempty"`
	MaxRecordAge string `yaml:"max_record_age,omitempty"`
	SlotMinutes  int    `yaml:"default_slot_minutes,omitempty"`
}

// Step is one operation. Exactly one operation field must be set.
type Step struct {
	// As names the event a create step produces.
	As string `yaml:"as,omitempty"`

	// Organization overrides the scenario organization for this step.
	Organization string `yaml:"organization,omitempty"`

	Create       *CreateStep       `yaml:"create,omitempty"`
	Update       *UpdateStep       `yaml:"update,omitempty"`
	Delete       *DeleteStep       `yaml:"delete,omitempty"`
	Cache        *CacheStep        `yaml:"cache,omitempty"`
	ClearCache   *ClearCacheStep   `yaml:"clear_cache,omitempty"`
	Availability *AvailabilityStep `yaml:"availability,omitempty"`
	Advance      string            `yaml:"advance,omitempty"`

	// Expect checks the step outcome. Without it the step must succeed.
	Expect *StepExpect `yaml:"expect,omitempty"`
}

// Step operation names.
const (
	OpCreate       = "create"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpCache        = "cache"
	OpClearCache   = "clear_cache"
	OpAvailability = "availability"
	OpAdvance      = "advance"
)

// Op returns the operation name, or "" if none or several are set.
func (s Step) Op() string {
	var ops []string
	if s.Create != nil {
		ops = append(ops, OpCreate)
	}
	if s.Update != nil {
		ops = append(ops, OpUpdate)
	}
	if s.Delete != nil {
		ops = append(ops, OpDelete)
	}
	if s.Cache != nil {
		ops = append(ops, OpCache)
	}
	if s.ClearCache != nil {
		ops = append(ops, OpClearCache)
	}
	if s.Availability != nil {
		ops = append(ops, OpAvailability)
	}
	if s.Advance != "" {
		ops = append(ops, OpAdvance)
	}
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

// CreateStep creates an event.
type CreateStep struct {
	Title     string   `yaml:"title"`
	Start     string   `yaml:"start"`
	End       string   `yaml:"end"`
	Assignees []string `yaml:"assignees"`
	CreatedBy string   `yaml:"created_by,omitempty"`
}

// UpdateStep updates an event. Unset fields are left unchanged.
type UpdateStep struct {
	Event           string   `yaml:"event"`
	Title           *string  `yaml:"title,omitempty"`
	Start           *string  `yaml:"start,omitempty"`
	End             *string  `yaml:"end,omitempty"`
	Assignees       []string `yaml:"assignees,omitempty"`
	ExpectedVersion *int64   `yaml:"expected_version,omitempty"`
}

// DeleteStep deletes an event.
type DeleteStep struct {
	Event           string `yaml:"event"`
	ExpectedVersion *int64 `yaml:"expected_version,omitempty"`
}

// CacheStep replaces a user's cache record.
type CacheStep struct {
	User       string     `yaml:"user"`
	RangeStart string     `yaml:"range_start"`
	RangeEnd   string     `yaml:"range_end"`
	Busy       []BusySpec `yaml:"busy,omitempty"`
}

// BusySpec is a busy interval in a cache step.
type BusySpec struct {
	Start       string `yaml:"start"`
	End         string `yaml:"end"`
	Source      string `yaml:"source,omitempty"`
	ReferenceID string `yaml:"reference_id,omitempty"`
	Label       string `yaml:"label,omitempty"`
}

// ClearCacheStep removes one user's record, or all of the organization's.
type ClearCacheStep struct {
	User string `yaml:"user,omitempty"`
}

// AvailabilityStep runs a window query.
type AvailabilityStep struct {
	Users       []string `yaml:"users"`
	RangeStart  string   `yaml:"range_start"`
	RangeEnd    string   `yaml:"range_end"`
	SlotMinutes int      `yaml:"slot_minutes,omitempty"`
}

// StepExpect is the expected outcome of a step.
type StepExpect struct {
	// Error is the expected error code. Empty means success.
	Error string `yaml:"error,omitempty"`

	// Version is the expected event version after create or update.
	Version *int64 `yaml:"version,omitempty"`

	// Windows lists expected [start, end] pairs for an availability step.
	Windows [][]string `yaml:"windows,omitempty"`

	// Conflicts maps each user to the expected reference IDs (or event
	// names) of their conflicts, in order.
	Conflicts map[string][]string `yaml:"conflicts,omitempty"`
}

// Assertion validates the trace or final state.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, final_state.
	Type string `yaml:"type"`

	// Message is the bus message type (trace_contains, trace_count).
	Message string `yaml:"message,omitempty"`

	// Messages is the expected message order (trace_order).
	Messages []string `yaml:"messages,omitempty"`

	// Count is the expected number of messages (trace_count).
	Count int `yaml:"count,omitempty"`

	// Event names an event (trace_contains, final_state).
	Event string `yaml:"event,omitempty"`

	// User selects a cache record (final_state).
	User string `yaml:"user,omitempty"`

	// Organization overrides the scenario organization (final_state).
	Organization string `yaml:"organization,omitempty"`

	// Expect contains expected fields (final_state). Subset match.
	Expect map[string]interface{} `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertFinalState    = "final_state"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// day returns midnight UTC of the scenario date.
func (s *Scenario) day() (time.Time, error) {
	date := s.Date
	if date == "" {
		date = DefaultDate
	}
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("date %q: want YYYY-MM-DD", date)
	}
	return d.UTC(), nil
}

// organization resolves a step-level override against the scenario default.
func (s *Scenario) organization(override string) string {
	if override != "" {
		return override
	}
	if s.Organization != "" {
		return s.Organization
	}
	return DefaultOrganization
}

// policy converts the scenario policy block.
func (s *Scenario) policy() (availability.Policy, time.Duration, error) {
	p := availability.DefaultPolicy()
	if s.Policy == nil {
		return p, 0, nil
	}
	uncovered, err := availability.ParseUncovered(s.Policy.Uncovered)
	if err != nil {
		return p, 0, err
	}
	p.Uncovered = uncovered
	if s.Policy.MaxRecordAge != "" {
		age, err := time.ParseDuration(s.Policy.MaxRecordAge)
		if err != nil {
			return p, 0, fmt.Errorf("max_record_age: %w", err)
		}
		p.MaxAge = age
	}
	return p, time.Duration(s.Policy.SlotMinutes) * time.Minute, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	day, err := s.day()
	if err != nil {
		return err
	}
	if _, _, err := s.policy(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}

	names := make(map[string]bool)
	for i, step := range s.Steps {
		op := step.Op()
		if op == "" {
			return fmt.Errorf("steps[%d]: exactly one operation is required", i)
		}
		if step.As != "" {
			if op != OpCreate {
				return fmt.Errorf("steps[%d]: as is only valid on create", i)
			}
			if names[step.As] {
				return fmt.Errorf("steps[%d]: duplicate name %q", i, step.As)
			}
			names[step.As] = true
		}
		if err := validateStepTimes(day, step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.Advance != "" {
			if d, err := time.ParseDuration(step.Advance); err != nil || d < 0 {
				return fmt.Errorf("steps[%d]: advance must be a non-negative duration", i)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

// validateStepTimes parses every time field of step so bad values fail at
// load time rather than mid-run.
func validateStepTimes(day time.Time, step Step) error {
	var values []string
	switch {
	case step.Create != nil:
		values = append(values, step.Create.Start, step.Create.End)
	case step.Update != nil:
		if step.Update.Start != nil {
			values = append(values, *step.Update.Start)
		}
		if step.Update.End != nil {
			values = append(values, *step.Update.End)
		}
	case step.Cache != nil:
		values = append(values, step.Cache.RangeStart, step.Cache.RangeEnd)
		for _, b := range step.Cache.Busy {
			values = append(values, b.Start, b.End)
		}
	case step.Availability != nil:
		values = append(values, step.Availability.RangeStart, step.Availability.RangeEnd)
	}
	if step.Expect != nil {
		for _, w := range step.Expect.Windows {
			if len(w) != 2 {
				return fmt.Errorf("expect.windows entries must be [start, end] pairs")
			}
			values = append(values, w...)
		}
	}
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, err := parseTime(day, v); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Messages) == 0 {
			return fmt.Errorf("assertions[%d]: messages list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertFinalState:
		if (a.Event == "") == (a.User == "") {
			return fmt.Errorf("assertions[%d]: exactly one of event or user is required for final_state", index)
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// parseTime accepts RFC 3339 or "HH:MM" on day.
func parseTime(day time.Time, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) == len("15:04") {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return time.Time{}, fmt.Errorf("time %q: want HH:MM or RFC 3339", s)
		}
		return day.Add(time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("time %q: want HH:MM or RFC 3339", s)
	}
	return t.UTC(), nil
}
