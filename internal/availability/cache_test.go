package availability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/huddle/internal/model"
	"github.com/roach88/huddle/internal/store"
	"github.com/roach88/huddle/internal/testutil"
)

var base = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return base.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func newTestCache(t *testing.T) (*Cache, *store.Memory, *testutil.StepClock) {
	t.Helper()
	repo := store.NewMemory()
	clk := testutil.NewFrozenClock(at(7, 0))
	return NewCache(repo, WithClock(clk)), repo, clk
}

func TestUpdateCache_NormalizesBusy(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()

	rec, err := c.UpdateCache(ctx, UpdateCacheInput{
		OrganizationID: " org ",
		UserID:         "user-2",
		RangeStart:     at(9, 0),
		RangeEnd:       at(12, 0),
		Busy: []model.BusyInterval{
			{Start: at(11, 0), End: at(11, 30), ReferenceID: "b"},
			{Start: at(8, 0), End: at(9, 30), Source: "ics", ReferenceID: "a"},
			{Start: at(12, 0), End: at(13, 0), ReferenceID: "outside"},
			{Start: at(6, 0), End: at(7, 0), ReferenceID: "before"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "org", rec.OrganizationID)
	assert.Equal(t, at(7, 0), rec.FetchedAt)
	assert.Equal(t, []model.BusyInterval{
		{Start: at(9, 0), End: at(9, 30), Source: "ics", ReferenceID: "a"},
		{Start: at(11, 0), End: at(11, 30), Source: model.SourceExternal, ReferenceID: "b"},
	}, rec.Busy)

	stored, ok, err := c.GetCacheRecord(ctx, "org", "user-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec, stored)
}

func TestUpdateCache_ReplacesWithoutMerge(t *testing.T) {
	c, _, clk := newTestCache(t)
	ctx := context.Background()

	_, err := c.UpdateCache(ctx, UpdateCacheInput{
		OrganizationID: "org",
		UserID:         "u",
		RangeStart:     at(9, 0),
		RangeEnd:       at(12, 0),
		Busy:           []model.BusyInterval{{Start: at(9, 0), End: at(10, 0)}},
	})
	require.NoError(t, err)

	clk.Set(at(8, 0))
	_, err = c.UpdateCache(ctx, UpdateCacheInput{
		OrganizationID: "org",
		UserID:         "u",
		RangeStart:     at(13, 0),
		RangeEnd:       at(14, 0),
	})
	require.NoError(t, err)

	rec, ok, err := c.GetCacheRecord(ctx, "org", "u")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, rec.Busy)
	assert.Equal(t, at(13, 0), rec.RangeStart)
	assert.Equal(t, at(8, 0), rec.FetchedAt)
}

func TestUpdateCache_Validation(t *testing.T) {
	tests := []struct {
		name string
		in   UpdateCacheInput
	}{
		{"missing organization", UpdateCacheInput{UserID: "u", RangeStart: at(9, 0), RangeEnd: at(10, 0)}},
		{"missing user", UpdateCacheInput{OrganizationID: "org", RangeStart: at(9, 0), RangeEnd: at(10, 0)}},
		{"empty range", UpdateCacheInput{OrganizationID: "org", UserID: "u", RangeStart: at(9, 0), RangeEnd: at(9, 0)}},
		{"inverted range", UpdateCacheInput{OrganizationID: "org", UserID: "u", RangeStart: at(10, 0), RangeEnd: at(9, 0)}},
		{"range beyond storable times", UpdateCacheInput{
			OrganizationID: "org", UserID: "u",
			RangeStart: time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), RangeEnd: time.Date(2300, 1, 2, 0, 0, 0, 0, time.UTC),
		}},
		{"invalid busy entry", UpdateCacheInput{
			OrganizationID: "org", UserID: "u", RangeStart: at(9, 0), RangeEnd: at(10, 0),
			Busy: []model.BusyInterval{{Start: at(9, 30), End: at(9, 30)}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, repo, _ := newTestCache(t)
			_, err := c.UpdateCache(context.Background(), tt.in)
			assert.Equal(t, model.CodeInvalidArgument, model.CodeOf(err))

			recs, err := repo.ListRecords(context.Background(), "org", nil)
			require.NoError(t, err)
			assert.Empty(t, recs, "nothing written")
		})
	}
}

func TestCacheReads_Validation(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	_, err := c.UpdateCache(ctx, UpdateCacheInput{OrganizationID: "org", UserID: "u", RangeStart: at(9, 0), RangeEnd: at(10, 0)})
	require.NoError(t, err)

	tests := []struct {
		name string
		call func() error
	}{
		{"get without organization", func() error { _, _, err := c.GetCacheRecord(ctx, "", "u"); return err }},
		{"get without user", func() error { _, _, err := c.GetCacheRecord(ctx, "org", "  "); return err }},
		{"get without either", func() error { _, _, err := c.GetCacheRecord(ctx, "", ""); return err }},
		{"list without organization", func() error { _, err := c.ListCacheRecords(ctx, "", nil); return err }},
		{"list with blank organization", func() error { _, err := c.ListCacheRecords(ctx, " ", []string{"u"}); return err }},
		{"clear without organization", func() error { _, err := c.ClearCache(ctx, "", "u"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, model.CodeInvalidArgument, model.CodeOf(tt.call()))
		})
	}

	rec, ok, err := c.GetCacheRecord(ctx, " org ", " u ")
	require.NoError(t, err)
	require.True(t, ok, "keys are trimmed")
	assert.Equal(t, "u", rec.UserID)
}

func TestListAndClearCache(t *testing.T) {
	c, _, _ := newTestCache(t)
	ctx := context.Background()
	for _, u := range []string{"u2", "u1", "u3"} {
		_, err := c.UpdateCache(ctx, UpdateCacheInput{OrganizationID: "org", UserID: u, RangeStart: at(9, 0), RangeEnd: at(10, 0)})
		require.NoError(t, err)
	}

	all, err := c.ListCacheRecords(ctx, "org", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "u1", all[0].UserID)

	some, err := c.ListCacheRecords(ctx, "org", []string{"u3"})
	require.NoError(t, err)
	require.Len(t, some, 1)

	removed, err := c.ClearCache(ctx, "org", "u3")
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = c.ClearCache(ctx, "org", "u3")
	require.NoError(t, err)
	assert.False(t, removed)

	removed, err = c.ClearCache(ctx, "org", "")
	require.NoError(t, err)
	assert.True(t, removed)

	all, err = c.ListCacheRecords(ctx, "org", nil)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = c.ClearCache(ctx, "", "")
	assert.True(t, model.IsInvalidArgument(err))
}

func TestParseUncovered(t *testing.T) {
	for in, want := range map[string]Uncovered{"": UncoveredBusy, "busy": UncoveredBusy, "FREE": UncoveredFree} {
		got, err := ParseUncovered(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseUncovered("maybe")
	assert.Error(t, err)
}
