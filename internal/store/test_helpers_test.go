package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/huddle/internal/model"
)

// backend is the full persistence surface both stores provide.
type backend interface {
	InsertEvent(ctx context.Context, e model.Event) error
	ReplaceEvent(ctx context.Context, e model.Event, prevVersion int64) error
	DeleteEvent(ctx context.Context, id string, version int64) error
	GetEvent(ctx context.Context, id string) (model.Event, bool, error)
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error)
	PutRecord(ctx context.Context, rec model.CacheRecord) error
	GetRecord(ctx context.Context, orgID, userID string) (model.CacheRecord, bool, error)
	ListRecords(ctx context.Context, orgID string, userIDs []string) ([]model.CacheRecord, error)
	DeleteRecords(ctx context.Context, orgID, userID string) (int64, error)
	Close() error
}

// createTestStore creates a new file-backed SQLite store for testing.
func createTestStore(t *testing.T) *SQLite {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachBackend runs fn against SQLite and Memory.
func forEachBackend(t *testing.T, fn func(t *testing.T, b backend)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, createTestStore(t)) })
	t.Run("memory", func(t *testing.T) { fn(t, NewMemory()) })
}

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(min)*time.Minute)
}

func ptr(t time.Time) *time.Time { return &t }

// createTestEvent creates an event with minimal required fields.
func createTestEvent(id, org string, start, end time.Time, assignees ...string) model.Event {
	return model.Event{
		ID:             id,
		OrganizationID: org,
		Title:          "meeting " + id,
		Start:          start,
		End:            end,
		Assignees:      assignees,
		Version:        1,
		CreatedBy:      "tester",
		CreatedAt:      day,
		UpdatedAt:      day,
	}
}
