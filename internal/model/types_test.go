package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventClone_IsDeep(t *testing.T) {
	e := Event{ID: "evt-1", Assignees: []string{"user-1"}}
	c := e.Clone()
	c.Assignees[0] = "user-2"

	assert.Equal(t, "user-1", e.Assignees[0])
}

func TestEventHasAssignee(t *testing.T) {
	e := Event{Assignees: []string{"user-1", "user-2"}}
	assert.True(t, e.HasAssignee("user-2"))
	assert.False(t, e.HasAssignee("user-3"))
}

func TestCacheRecordClone_IsDeep(t *testing.T) {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	r := CacheRecord{Busy: []BusyInterval{{Start: start, End: start.Add(time.Hour), Label: "a"}}}
	c := r.Clone()
	c.Busy[0].Label = "b"

	assert.Equal(t, "a", r.Busy[0].Label)
}

func TestEventFilter_Matches(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2026, 3, 2, h, 0, 0, 0, time.UTC) }
	ptr := func(t time.Time) *time.Time { return &t }
	e := Event{ID: "evt-1", OrganizationID: "org", Start: at(9), End: at(10), Assignees: []string{"u1", "u2"}}

	tests := []struct {
		name   string
		filter EventFilter
		want   bool
	}{
		{"org only", EventFilter{OrganizationID: "org"}, true},
		{"other org", EventFilter{OrganizationID: "other"}, false},
		{"excluded", EventFilter{OrganizationID: "org", ExcludeID: "evt-1"}, false},
		{"window overlaps", EventFilter{OrganizationID: "org", From: ptr(at(8)), To: ptr(at(11))}, true},
		{"window touches end", EventFilter{OrganizationID: "org", From: ptr(at(10)), To: ptr(at(11))}, false},
		{"window touches start", EventFilter{OrganizationID: "org", From: ptr(at(8)), To: ptr(at(9))}, false},
		{"open start", EventFilter{OrganizationID: "org", To: ptr(at(9))}, false},
		{"open end", EventFilter{OrganizationID: "org", From: ptr(at(9))}, true},
		{"shared assignee", EventFilter{OrganizationID: "org", Assignees: []string{"u3", "u2"}}, true},
		{"no shared assignee", EventFilter{OrganizationID: "org", Assignees: []string{"u3"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Matches(e))
		})
	}
}
