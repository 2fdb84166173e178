package model

import (
	"math"
	"time"

	"github.com/roach88/huddle/internal/interval"
)

// Busy interval sources.
const (
	// SourceEvent marks busy time derived from an Event in the store.
	SourceEvent = "event"

	// SourceExternal is the default source for cached external busy data.
	SourceExternal = "external-calendar"

	// SourceUncovered marks query time outside a cache record's declared
	// range (or inside a stale record) when the uncovered policy is "busy".
	SourceUncovered = "uncovered"
)

// Supported instants. Stores keep times as Unix nanoseconds, which reach
// from 1677-09-21 to 2262-04-11.
var (
	MinTime = time.Unix(0, math.MinInt64).UTC()
	MaxTime = time.Unix(0, math.MaxInt64).UTC()
)

// InTimeRange reports whether every t lies within [MinTime, MaxTime].
func InTimeRange(ts ...time.Time) bool {
	for _, t := range ts {
		if t.Before(MinTime) || t.After(MaxTime) {
			return false
		}
	}
	return true
}

// Event is a calendar event owned by the Event Store.
type Event struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Title          string    `json:"title"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Assignees      []string  `json:"assignees"`
	Version        int64     `json:"version"`
	CreatedBy      string    `json:"created_by,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Span returns the event interval.
func (e Event) Span() interval.Span {
	return interval.New(e.Start, e.End)
}

// HasAssignee reports whether userID is assigned to e.
func (e Event) HasAssignee(userID string) bool {
	for _, a := range e.Assignees {
		if a == userID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	e.Assignees = append([]string(nil), e.Assignees...)
	return e
}

// BusyInterval is an externally sourced busy period.
type BusyInterval struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Source      string    `json:"source"`
	ReferenceID string    `json:"reference_id,omitempty"`
	Label       string    `json:"label,omitempty"`
}

// Span returns the busy interval.
func (b BusyInterval) Span() interval.Span {
	return interval.New(b.Start, b.End)
}

// CacheRecord holds the complete external busy set asserted for one user
// over [RangeStart, RangeEnd).
type CacheRecord struct {
	OrganizationID string         `json:"organization_id"`
	UserID         string         `json:"user_id"`
	RangeStart     time.Time      `json:"range_start"`
	RangeEnd       time.Time      `json:"range_end"`
	Busy           []BusyInterval `json:"busy"`
	FetchedAt      time.Time      `json:"fetched_at"`
}

// Range returns the declared range of the record.
func (r CacheRecord) Range() interval.Span {
	return interval.New(r.RangeStart, r.RangeEnd)
}

// Clone returns a deep copy of r.
func (r CacheRecord) Clone() CacheRecord {
	r.Busy = append([]BusyInterval(nil), r.Busy...)
	return r
}

// UserBusy is a busy interval attributed to a user. It is the unit of both
// the combined busy set and the per-user conflict report.
type UserBusy struct {
	UserID      string    `json:"user_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Source      string    `json:"source"`
	ReferenceID string    `json:"reference_id"`
	Label       string    `json:"label,omitempty"`
}

// Span returns the busy interval.
func (u UserBusy) Span() interval.Span {
	return interval.New(u.Start, u.End)
}

// AvailabilityResult is the answer to a group availability query.
type AvailabilityResult struct {
	Windows     []interval.Span       `json:"windows"`
	Conflicts   map[string][]UserBusy `json:"conflicts"`
	GeneratedAt time.Time             `json:"generated_at"`
}

// EventFilter selects events of one organization. Nil bounds are unbounded;
// an event matches when its interval intersects [From, To).
type EventFilter struct {
	OrganizationID string
	From           *time.Time
	To             *time.Time

	// Assignees restricts results to events sharing at least one of these
	// users. Empty means all events.
	Assignees []string

	// ExcludeID drops one event from the results (the event being updated).
	ExcludeID string
}

// Matches reports whether e satisfies the filter.
func (f EventFilter) Matches(e Event) bool {
	if e.OrganizationID != f.OrganizationID || (f.ExcludeID != "" && e.ID == f.ExcludeID) {
		return false
	}
	if f.To != nil && !e.Start.Before(*f.To) {
		return false
	}
	if f.From != nil && !f.From.Before(e.End) {
		return false
	}
	if len(f.Assignees) == 0 {
		return true
	}
	for _, u := range f.Assignees {
		if e.HasAssignee(u) {
			return true
		}
	}
	return false
}
