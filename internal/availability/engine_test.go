package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/huddle/internal/bus"
	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
	"github.com/roach88/huddle/internal/schedule"
	"github.com/roach88/huddle/internal/store"
	"github.com/roach88/huddle/internal/testutil"
)

type engineFixture struct {
	repo   *store.Memory
	cache  *Cache
	engine *Engine
	clock  *testutil.StepClock
}

func newEngineFixture(t *testing.T, opts ...Option) *engineFixture {
	t.Helper()
	repo := store.NewMemory()
	clk := testutil.NewFrozenClock(at(8, 0))
	opts = append([]Option{WithClock(clk)}, opts...)
	cache := NewCache(repo, opts...)
	return &engineFixture{
		repo:   repo,
		cache:  cache,
		engine: NewEngine(schedule.New(repo, bus.New(clk), schedule.WithClock(clk)), cache, opts...),
		clock:  clk,
	}
}

func (f *engineFixture) event(t *testing.T, id, title string, start, end time.Time, assignees ...string) {
	t.Helper()
	require.NoError(t, f.repo.InsertEvent(context.Background(), model.Event{
		ID:             id,
		OrganizationID: "org",
		Title:          title,
		Start:          start,
		End:            end,
		Assignees:      assignees,
		Version:        1,
		CreatedAt:      base,
		UpdatedAt:      base,
	}))
}

func (f *engineFixture) busy(t *testing.T, user string, start, end time.Time, busy ...model.BusyInterval) {
	t.Helper()
	_, err := f.cache.UpdateCache(context.Background(), UpdateCacheInput{
		OrganizationID: "org",
		UserID:         user,
		RangeStart:     start,
		RangeEnd:       end,
		Busy:           busy,
	})
	require.NoError(t, err)
}

func span(sh, sm, eh, em int) interval.Span {
	return interval.New(at(sh, sm), at(eh, em))
}

func TestGetAvailabilityWindows_EventsAndCache(t *testing.T) {
	f := newEngineFixture(t)
	f.event(t, "evt-1", "Planning", at(9, 30), at(10, 30), "user-1")
	f.busy(t, "user-2", at(9, 0), at(12, 0),
		model.BusyInterval{Start: at(11, 0), End: at(11, 30), ReferenceID: "gcal-7", Label: "Dentist"})

	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"user-1", "user-2"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(12, 0),
		SlotMinutes:    30,
	})
	require.NoError(t, err)

	assert.Equal(t, []interval.Span{span(9, 0, 9, 30), span(10, 30, 11, 0), span(11, 30, 12, 0)}, res.Windows)
	assert.Equal(t, map[string][]model.UserBusy{
		"user-1": {{UserID: "user-1", Start: at(9, 30), End: at(10, 30), Source: model.SourceEvent, ReferenceID: "evt-1", Label: "Planning"}},
		"user-2": {{UserID: "user-2", Start: at(11, 0), End: at(11, 30), Source: model.SourceExternal, ReferenceID: "gcal-7", Label: "Dentist"}},
	}, res.Conflicts)
	assert.Equal(t, at(8, 0), res.GeneratedAt)
}

func TestGetAvailabilityWindows_Idempotent(t *testing.T) {
	f := newEngineFixture(t)
	f.event(t, "evt-1", "a", at(9, 30), at(10, 30), "user-1", "user-2")
	f.busy(t, "user-2", at(0, 0), at(23, 0), model.BusyInterval{Start: at(11, 0), End: at(11, 20)})

	q := WindowQuery{OrganizationID: "org", UserIDs: []string{"user-1", "user-2"}, RangeStart: at(9, 0), RangeEnd: at(12, 0)}
	first, err := f.engine.GetAvailabilityWindows(context.Background(), q)
	require.NoError(t, err)
	f.clock.Advance(time.Hour)
	second, err := f.engine.GetAvailabilityWindows(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, first.Windows, second.Windows)
	assert.Equal(t, first.Conflicts, second.Conflicts)
	assert.NotEqual(t, first.GeneratedAt, second.GeneratedAt)
}

func TestGetAvailabilityWindows_DefaultSlotAndTruncatedTail(t *testing.T) {
	f := newEngineFixture(t)
	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"nobody"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(10, 10),
	})
	require.NoError(t, err)
	assert.Equal(t, []interval.Span{span(9, 0, 10, 10)}, res.Windows)
	assert.Equal(t, map[string][]model.UserBusy{"nobody": {}}, res.Conflicts)
}

func TestGetAvailabilityWindows_PartialOverlapBlocksWholeSlot(t *testing.T) {
	f := newEngineFixture(t)
	f.event(t, "evt-1", "a", at(9, 10), at(9, 20), "user-1")

	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"user-1"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(10, 0),
		SlotMinutes:    30,
	})
	require.NoError(t, err)
	assert.Equal(t, []interval.Span{span(9, 30, 10, 0)}, res.Windows)
}

func TestGetAvailabilityWindows_FullyBusy(t *testing.T) {
	f := newEngineFixture(t)
	f.event(t, "evt-1", "all day", at(0, 0), at(23, 0), "user-1")

	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"user-1"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(10, 0),
	})
	require.NoError(t, err)
	assert.NotNil(t, res.Windows)
	assert.Empty(t, res.Windows)

	// Conflicts report the whole event, not just the queried part.
	require.Len(t, res.Conflicts["user-1"], 1)
	assert.Equal(t, at(0, 0), res.Conflicts["user-1"][0].Start)
}

func TestGetAvailabilityWindows_AttributesOnlyRequestedUsers(t *testing.T) {
	f := newEngineFixture(t)
	f.event(t, "evt-1", "a", at(9, 0), at(10, 0), "user-1", "user-3")
	f.event(t, "evt-2", "b", at(10, 0), at(11, 0), "user-3")

	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"user-1", "user-2", "user-1", " "},
		RangeStart:     at(9, 0),
		RangeEnd:       at(12, 0),
		SlotMinutes:    60,
	})
	require.NoError(t, err)
	assert.Equal(t, []interval.Span{span(10, 0, 12, 0)}, res.Windows)
	assert.Len(t, res.Conflicts, 2)
	assert.Len(t, res.Conflicts["user-1"], 1)
	assert.Empty(t, res.Conflicts["user-2"])
	assert.NotContains(t, res.Conflicts, "user-3")
}

func TestGetAvailabilityWindows_ConflictOrdering(t *testing.T) {
	f := newEngineFixture(t)
	f.event(t, "evt-b", "b", at(10, 0), at(10, 30), "user-1")
	f.busy(t, "user-1", at(9, 0), at(12, 0),
		model.BusyInterval{Start: at(10, 0), End: at(11, 0), ReferenceID: "ext-a"},
		model.BusyInterval{Start: at(9, 0), End: at(9, 15), ReferenceID: "ext-z"},
	)

	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"user-1"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(12, 0),
	})
	require.NoError(t, err)

	var refs []string
	for _, b := range res.Conflicts["user-1"] {
		refs = append(refs, b.ReferenceID)
	}
	assert.Equal(t, []string{"ext-z", "evt-b", "ext-a"}, refs)
}

func TestGetAvailabilityWindows_UncoveredBusy(t *testing.T) {
	f := newEngineFixture(t)
	f.busy(t, "user-2", at(10, 0), at(11, 0))

	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"user-2"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(12, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []interval.Span{span(10, 0, 11, 0)}, res.Windows)
	assert.Equal(t, []model.UserBusy{
		{UserID: "user-2", Start: at(9, 0), End: at(10, 0), Source: model.SourceUncovered, ReferenceID: "cache:org/user-2"},
		{UserID: "user-2", Start: at(11, 0), End: at(12, 0), Source: model.SourceUncovered, ReferenceID: "cache:org/user-2"},
	}, res.Conflicts["user-2"])
}

func TestGetAvailabilityWindows_UncoveredFree(t *testing.T) {
	f := newEngineFixture(t, WithPolicy(Policy{Uncovered: UncoveredFree}))
	f.busy(t, "user-2", at(10, 0), at(11, 0), model.BusyInterval{Start: at(10, 0), End: at(10, 30)})

	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"user-2"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(12, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []interval.Span{span(9, 0, 10, 0), span(10, 30, 12, 0)}, res.Windows)
	assert.Len(t, res.Conflicts["user-2"], 1)
}

func TestGetAvailabilityWindows_StaleRecord(t *testing.T) {
	f := newEngineFixture(t, WithPolicy(Policy{Uncovered: UncoveredBusy, MaxAge: time.Hour}))
	f.busy(t, "user-2", at(0, 0), at(23, 0), model.BusyInterval{Start: at(9, 0), End: at(9, 30), ReferenceID: "ext"})
	q := WindowQuery{OrganizationID: "org", UserIDs: []string{"user-2"}, RangeStart: at(9, 0), RangeEnd: at(10, 0)}

	fresh, err := f.engine.GetAvailabilityWindows(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, []interval.Span{span(9, 30, 10, 0)}, fresh.Windows)

	f.clock.Advance(2 * time.Hour)
	stale, err := f.engine.GetAvailabilityWindows(context.Background(), q)
	require.NoError(t, err)
	assert.Empty(t, stale.Windows)
	assert.Equal(t, []model.UserBusy{
		{UserID: "user-2", Start: at(9, 0), End: at(10, 0), Source: model.SourceUncovered, ReferenceID: "cache:org/user-2"},
	}, stale.Conflicts["user-2"])
}

func TestGetAvailabilityWindows_NoRecordMeansNoExternalBusy(t *testing.T) {
	f := newEngineFixture(t, WithPolicy(Policy{Uncovered: UncoveredBusy, MaxAge: time.Minute}))
	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"user-9"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(10, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []interval.Span{span(9, 0, 10, 0)}, res.Windows)
}

func TestGetAvailabilityWindows_Validation(t *testing.T) {
	f := newEngineFixture(t)
	tests := []struct {
		name string
		q    WindowQuery
	}{
		{"missing organization", WindowQuery{UserIDs: []string{"u"}, RangeStart: at(9, 0), RangeEnd: at(10, 0)}},
		{"no users", WindowQuery{OrganizationID: "org", RangeStart: at(9, 0), RangeEnd: at(10, 0)}},
		{"blank users", WindowQuery{OrganizationID: "org", UserIDs: []string{" ", ""}, RangeStart: at(9, 0), RangeEnd: at(10, 0)}},
		{"empty range", WindowQuery{OrganizationID: "org", UserIDs: []string{"u"}, RangeStart: at(9, 0), RangeEnd: at(9, 0)}},
		{"range beyond storable times", WindowQuery{OrganizationID: "org", UserIDs: []string{"u"},
			RangeStart: at(9, 0), RangeEnd: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)}},
		{"negative slot", WindowQuery{OrganizationID: "org", UserIDs: []string{"u"}, RangeStart: at(9, 0), RangeEnd: at(10, 0), SlotMinutes: -5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.GetAvailabilityWindows(context.Background(), tt.q)
			assert.Equal(t, model.CodeInvalidArgument, model.CodeOf(err))
		})
	}
}

func TestWithDefaultSlot(t *testing.T) {
	f := newEngineFixture(t, WithDefaultSlot(time.Hour))
	f.event(t, "evt-1", "a", at(9, 0), at(9, 5), "u")
	res, err := f.engine.GetAvailabilityWindows(context.Background(), WindowQuery{
		OrganizationID: "org",
		UserIDs:        []string{"u"},
		RangeStart:     at(9, 0),
		RangeEnd:       at(11, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, []interval.Span{span(10, 0, 11, 0)}, res.Windows)
}
