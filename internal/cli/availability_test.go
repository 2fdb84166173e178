package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
)

func at(hour, minute int) time.Time {
	return time.Date(2026, 1, 5, hour, minute, 0, 0, time.UTC)
}

func TestAvailability_EventsAndCache(t *testing.T) {
	db := testDB(t)
	planning := createEvent(t, db, "Planning", "2026-01-05T09:30:00Z", "2026-01-05T10:30:00Z", "user-1")
	putCache(t, db, "user-2", "2026-01-05T11:00:00Z,2026-01-05T11:30:00Z,gcal-7,Dentist")

	resp, err := executeJSON(t, db, "availability", "--org", "acme", "--user", "user-1", "--user", "user-2",
		"--from", "2026-01-05T09:00:00Z", "--to", "2026-01-05T12:00:00Z", "--slot", "30")
	require.NoError(t, err)

	var res model.AvailabilityResult
	decodeData(t, resp, &res)
	require.Len(t, res.Windows, 3)
	want := []interval.Span{
		interval.New(at(9, 0), at(9, 30)),
		interval.New(at(10, 30), at(11, 0)),
		interval.New(at(11, 30), at(12, 0)),
	}
	for i, w := range want {
		assert.True(t, w.Start.Equal(res.Windows[i].Start) && w.End.Equal(res.Windows[i].End),
			"window %d: got %v", i, res.Windows[i])
	}

	require.Len(t, res.Conflicts["user-1"], 1)
	assert.Equal(t, planning.ID, res.Conflicts["user-1"][0].ReferenceID)
	assert.Equal(t, "Planning", res.Conflicts["user-1"][0].Label)
	require.Len(t, res.Conflicts["user-2"], 1)
	assert.Equal(t, "gcal-7", res.Conflicts["user-2"][0].ReferenceID)
	assert.Equal(t, "Dentist", res.Conflicts["user-2"][0].Label)
}

func TestAvailability_TextOutput(t *testing.T) {
	db := testDB(t)
	createEvent(t, db, "Planning", "2026-01-05T09:30:00Z", "2026-01-05T10:30:00Z", "user-1")

	out, _, err := execute(t, "--db", db, "free", "--org", "acme", "--user", "user-1", "--user", "user-3",
		"--from", "2026-01-05T09:00:00Z", "--to", "2026-01-05T11:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, "Free:\n  2026-01-05T09:00:00Z .. 2026-01-05T09:30:00Z\n  2026-01-05T10:30:00Z .. 2026-01-05T11:00:00Z")
	assert.Contains(t, out, "Busy user-1:\n  2026-01-05T09:30:00Z .. 2026-01-05T10:30:00Z  event")
	assert.Contains(t, out, "Busy user-3: none")
}

func TestAvailability_ConfigPolicy(t *testing.T) {
	db := testDB(t)
	cfg := writeFile(t, "huddle.yaml", "availability:\n  uncovered: free\n  default_slot_minutes: 60\n")
	putCache(t, db, "user-2")

	// The record covers 09:00-12:00; with uncovered time free the afternoon
	// stays open.
	out, _, err := execute(t, "--format", "json", "--db", db, "--config", cfg, "availability", "--org", "acme",
		"--user", "user-2", "--from", "2026-01-05T09:00:00Z", "--to", "2026-01-05T14:00:00Z")
	require.NoError(t, err)
	assert.Contains(t, out, `"windows":[{"start":"2026-01-05T09:00:00Z","end":"2026-01-05T14:00:00Z"}]`)

	// Default policy: uncovered time is busy.
	resp, err := executeJSON(t, db, "availability", "--org", "acme",
		"--user", "user-2", "--from", "2026-01-05T09:00:00Z", "--to", "2026-01-05T14:00:00Z")
	require.NoError(t, err)
	var res model.AvailabilityResult
	decodeData(t, resp, &res)
	require.Len(t, res.Windows, 1)
	assert.True(t, res.Windows[0].End.Equal(at(12, 0)))
	require.Len(t, res.Conflicts["user-2"], 1)
	assert.Equal(t, model.SourceUncovered, res.Conflicts["user-2"][0].Source)
}

func TestAvailability_Invalid(t *testing.T) {
	resp, err := executeJSON(t, testDB(t), "availability", "--org", "acme", "--user", "u",
		"--from", "2026-01-05T12:00:00Z", "--to", "2026-01-05T09:00:00Z")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "AVAILABILITY_INVALID_ARGUMENT", resp.Error.Code)

	resp, err = executeJSON(t, testDB(t), "availability", "--org", "acme", "--user", "u",
		"--from", "noon", "--to", "2026-01-05T09:00:00Z")
	require.Error(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "AVAILABILITY_INVALID_ARGUMENT", resp.Error.Code)
}
