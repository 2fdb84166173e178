package harness

import (
	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
)

// Trace event kinds.
const (
	KindMessage = "message"
	KindStep    = "step"
)

// TraceEvent is either a bus message or the outcome of a step.
type TraceEvent struct {
	Kind string `json:"kind"`

	// Message fields.
	Seq  int64  `json:"seq,omitempty"`
	Type string `json:"type,omitempty"`

	// Step fields.
	Step   int    `json:"step"`
	Op     string `json:"op,omitempty"`
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`

	// Shared: the event a message or step concerns.
	EventID string `json:"event_id,omitempty"`
	Version int64  `json:"version,omitempty"`

	// Availability step output.
	Windows   []interval.Span             `json:"windows,omitempty"`
	Conflicts map[string][]model.UserBusy `json:"conflicts,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step met its expectation and every assertion
	// held.
	Pass bool `json:"pass"`

	// Trace contains bus messages and step outcomes in execution order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Messages returns the message events of the trace.
func (r *Result) Messages() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Kind == KindMessage {
			out = append(out, e)
		}
	}
	return out
}
