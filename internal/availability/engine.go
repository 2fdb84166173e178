package availability

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
	"github.com/roach88/huddle/internal/schedule"
)

// EventSource lists events. Satisfied by *schedule.Store, the owner of
// event state.
type EventSource interface {
	ListEvents(ctx context.Context, q schedule.ListQuery) ([]model.Event, error)
}

// RecordSource lists cache records. Satisfied by *Cache.
type RecordSource interface {
	ListCacheRecords(ctx context.Context, orgID string, userIDs []string) ([]model.CacheRecord, error)
}

// WindowQuery asks when every user in UserIDs is free within
// [RangeStart, RangeEnd). SlotMinutes zero selects the engine default.
type WindowQuery struct {
	OrganizationID string
	UserIDs        []string
	RangeStart     time.Time
	RangeEnd       time.Time
	SlotMinutes    int
}

// Engine is the Availability Window Engine.
//
// Thread-safety: Engine holds no mutable state and is safe for concurrent
// use if its sources are.
type Engine struct {
	events  EventSource
	records RecordSource
	opts    options
}

// NewEngine creates an Engine reading events and cache records from the
// given sources.
func NewEngine(events EventSource, records RecordSource, opts ...Option) *Engine {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Engine{events: events, records: records, opts: o}
}

// Policy returns the staleness policy in effect.
func (e *Engine) Policy() Policy {
	return e.opts.policy
}

// GetAvailabilityWindows returns the windows in which no requested user is
// busy, and each requested user's busy intervals intersecting the range.
//
// A slot is free only if it overlaps no busy interval of any requested user.
// Adjacent free slots are merged into one window. The result depends only on
// stored events and cache records, apart from GeneratedAt.
func (e *Engine) GetAvailabilityWindows(ctx context.Context, q WindowQuery) (model.AvailabilityResult, error) {
	q, slot, err := e.normalize(q)
	if err != nil {
		return model.AvailabilityResult{}, err
	}
	rng := interval.New(q.RangeStart, q.RangeEnd)
	now := e.opts.clock.Now().UTC()

	events, err := e.events.ListEvents(ctx, schedule.ListQuery{
		OrganizationID: q.OrganizationID,
		Start:          &rng.Start,
		End:            &rng.End,
		Assignees:      q.UserIDs,
	})
	if err != nil {
		return model.AvailabilityResult{}, fmt.Errorf("availability: list events: %w", err)
	}
	records, err := e.records.ListCacheRecords(ctx, q.OrganizationID, q.UserIDs)
	if err != nil {
		return model.AvailabilityResult{}, fmt.Errorf("availability: list cache records: %w", err)
	}

	conflicts := make(map[string][]model.UserBusy, len(q.UserIDs))
	for _, u := range q.UserIDs {
		conflicts[u] = []model.UserBusy{}
	}
	add := func(b model.UserBusy) {
		if _, requested := conflicts[b.UserID]; !requested {
			return
		}
		if !interval.Overlaps(b.Span(), rng) {
			return
		}
		conflicts[b.UserID] = append(conflicts[b.UserID], b)
	}

	for _, ev := range events {
		for _, u := range ev.Assignees {
			add(model.UserBusy{
				UserID:      u,
				Start:       ev.Start,
				End:         ev.End,
				Source:      model.SourceEvent,
				ReferenceID: ev.ID,
				Label:       ev.Title,
			})
		}
	}
	for _, rec := range records {
		for _, b := range e.recordBusy(rec, rng, now) {
			add(b)
		}
	}

	var busy []interval.Span
	for u, list := range conflicts {
		sortUserBusy(list)
		conflicts[u] = list
		for _, b := range list {
			busy = append(busy, b.Span())
		}
	}
	busy = interval.Union(busy)

	var free []interval.Span
	for _, s := range interval.Partition(rng, slot) {
		if !overlapsAny(s, busy) {
			free = append(free, s)
		}
	}
	windows := interval.MergeContiguous(free)
	if windows == nil {
		windows = []interval.Span{}
	}

	e.opts.logger.Debug("availability computed",
		"org", q.OrganizationID,
		"users", len(q.UserIDs),
		"events", len(events),
		"records", len(records),
		"windows", len(windows),
	)
	return model.AvailabilityResult{
		Windows:     windows,
		Conflicts:   conflicts,
		GeneratedAt: now,
	}, nil
}

// recordBusy converts one cache record into the busy time it contributes to
// a query over rng, applying the staleness policy.
func (e *Engine) recordBusy(rec model.CacheRecord, rng interval.Span, now time.Time) []model.UserBusy {
	var (
		out     []model.UserBusy
		covered []interval.Span
		policy  = e.opts.policy
	)
	if !policy.stale(rec.FetchedAt, now) {
		covered = []interval.Span{rec.Range()}
		for _, b := range rec.Busy {
			out = append(out, model.UserBusy{
				UserID:      rec.UserID,
				Start:       b.Start,
				End:         b.End,
				Source:      b.Source,
				ReferenceID: b.ReferenceID,
				Label:       b.Label,
			})
		}
	}
	if policy.Uncovered == UncoveredFree {
		return out
	}
	for _, gap := range interval.Subtract(rng, covered) {
		out = append(out, model.UserBusy{
			UserID:      rec.UserID,
			Start:       gap.Start,
			End:         gap.End,
			Source:      model.SourceUncovered,
			ReferenceID: "cache:" + rec.OrganizationID + "/" + rec.UserID,
		})
	}
	return out
}

func (e *Engine) normalize(q WindowQuery) (WindowQuery, time.Duration, error) {
	q.OrganizationID = strings.TrimSpace(q.OrganizationID)
	if q.OrganizationID == "" {
		return q, 0, model.InvalidArgument("organization is required")
	}

	users := make([]string, 0, len(q.UserIDs))
	seen := make(map[string]bool, len(q.UserIDs))
	for _, u := range q.UserIDs {
		u = strings.TrimSpace(u)
		if u == "" || seen[u] {
			continue
		}
		seen[u] = true
		users = append(users, u)
	}
	if len(users) == 0 {
		return q, 0, model.InvalidArgument("at least one user is required")
	}
	q.UserIDs = users

	if q.RangeStart.IsZero() || q.RangeEnd.IsZero() || !q.RangeStart.Before(q.RangeEnd) {
		return q, 0, model.InvalidArgument("range start must be before range end")
	}
	if !model.InTimeRange(q.RangeStart, q.RangeEnd) {
		return q, 0, errTimeRange()
	}
	q.RangeStart, q.RangeEnd = q.RangeStart.UTC(), q.RangeEnd.UTC()

	switch {
	case q.SlotMinutes < 0:
		return q, 0, model.InvalidArgument("slot minutes must not be negative")
	case q.SlotMinutes == 0:
		return q, e.opts.defaultSlot, nil
	}
	return q, time.Duration(q.SlotMinutes) * time.Minute, nil
}

// sortUserBusy orders by start, then reference, then end.
func sortUserBusy(list []model.UserBusy) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if a.ReferenceID != b.ReferenceID {
			return a.ReferenceID < b.ReferenceID
		}
		return a.End.Before(b.End)
	})
}

// overlapsAny reports whether s overlaps a span of the sorted, disjoint
// busy list.
func overlapsAny(s interval.Span, busy []interval.Span) bool {
	i := sort.Search(len(busy), func(i int) bool {
		return busy[i].End.After(s.Start)
	})
	return i < len(busy) && interval.Overlaps(s, busy[i])
}
