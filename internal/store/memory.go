package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
)

type recordKey struct {
	org  string
	user string
}

// Memory is a map-backed store. Every value is deep-copied on the way in
// and out, so callers can never mutate stored state.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu      sync.RWMutex
	events  map[string]model.Event
	records map[recordKey]model.CacheRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		events:  make(map[string]model.Event),
		records: make(map[recordKey]model.CacheRecord),
	}
}

// Close is a no-op so Memory and SQLite are interchangeable.
func (m *Memory) Close() error {
	return nil
}

// InsertEvent stores a new event. Returns model.ErrOverlap if an assignee
// is already booked.
func (m *Memory) InsertEvent(_ context.Context, e model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.events[e.ID]; exists {
		return fmt.Errorf("insert event: duplicate id %s", e.ID)
	}
	if err := m.overlapLocked(e); err != nil {
		return err
	}
	m.events[e.ID] = e.Clone()
	return nil
}

// ReplaceEvent overwrites an event if its stored version is prevVersion.
func (m *Memory) ReplaceEvent(_ context.Context, e model.Event, prevVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.events[e.ID]
	if !ok || cur.Version != prevVersion {
		return model.ErrStaleWrite
	}
	if err := m.overlapLocked(e); err != nil {
		return err
	}
	m.events[e.ID] = e.Clone()
	return nil
}

// DeleteEvent removes an event if its stored version is version.
func (m *Memory) DeleteEvent(_ context.Context, id string, version int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.events[id]
	if !ok || cur.Version != version {
		return model.ErrStaleWrite
	}
	delete(m.events, id)
	return nil
}

// GetEvent retrieves a single event by ID.
func (m *Memory) GetEvent(_ context.Context, id string) (model.Event, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.events[id]
	if !ok {
		return model.Event{}, false, nil
	}
	return e.Clone(), true, nil
}

// ListEvents returns the events matching f, ordered by start then id.
func (m *Memory) ListEvents(_ context.Context, f model.EventFilter) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []model.Event{}
	for _, e := range m.events {
		if f.Matches(e) {
			out = append(out, e.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *Memory) overlapLocked(e model.Event) error {
	for _, other := range m.events {
		if other.ID == e.ID || other.OrganizationID != e.OrganizationID {
			continue
		}
		if !interval.Overlaps(other.Span(), e.Span()) {
			continue
		}
		for _, u := range e.Assignees {
			if other.HasAssignee(u) {
				return fmt.Errorf("%w: event %s", model.ErrOverlap, other.ID)
			}
		}
	}
	return nil
}

// PutRecord replaces the record for (organization, user).
func (m *Memory) PutRecord(_ context.Context, rec model.CacheRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[recordKey{rec.OrganizationID, rec.UserID}] = rec.Clone()
	return nil
}

// GetRecord retrieves the record for (organization, user).
func (m *Memory) GetRecord(_ context.Context, orgID, userID string) (model.CacheRecord, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[recordKey{orgID, userID}]
	if !ok {
		return model.CacheRecord{}, false, nil
	}
	return rec.Clone(), true, nil
}

// ListRecords returns the organization's records, optionally restricted to
// userIDs, ordered by user.
func (m *Memory) ListRecords(_ context.Context, orgID string, userIDs []string) ([]model.CacheRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[string]bool, len(userIDs))
	for _, u := range userIDs {
		want[u] = true
	}
	out := []model.CacheRecord{}
	for key, rec := range m.records {
		if key.org != orgID || (len(want) > 0 && !want[key.user]) {
			continue
		}
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

// DeleteRecords removes the record for (organization, user), or every record
// of the organization when userID is empty.
func (m *Memory) DeleteRecords(_ context.Context, orgID, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for key := range m.records {
		if key.org == orgID && (userID == "" || key.user == userID) {
			delete(m.records, key)
			n++
		}
	}
	return n, nil
}
