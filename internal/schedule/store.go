package schedule

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/roach88/huddle/internal/bus"
	"github.com/roach88/huddle/internal/clock"
	"github.com/roach88/huddle/internal/model"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for CreatedAt/UpdatedAt.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithIDGenerator sets the event identifier generator.
func WithIDGenerator(g clock.IDGenerator) Option {
	return func(s *Store) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// Store is the Event Store.
//
// Thread-safety: Store is safe for concurrent use. Writes to one
// organization are serialized; different organizations proceed in parallel.
type Store struct {
	repo   Repository
	pub    bus.Publisher
	clock  clock.Clock
	ids    clock.IDGenerator
	logger *slog.Logger
	locks  *orgLocks
}

// New creates an Event Store writing through repo and announcing on pub.
func New(repo Repository, pub bus.Publisher, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		pub:    pub,
		clock:  clock.System{},
		ids:    clock.UUIDv7Generator{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		locks:  newOrgLocks(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateEvent validates in, rejects it with EVENT_CONFLICT if any assignee
// already has an overlapping event, and otherwise stores and announces a new
// event at version 1.
func (s *Store) CreateEvent(ctx context.Context, in CreateInput) (model.Event, error) {
	in, err := normalizeCreate(in)
	if err != nil {
		return model.Event{}, err
	}

	unlock := s.locks.lock(in.OrganizationID)
	defer unlock()

	candidate := model.Event{
		OrganizationID: in.OrganizationID,
		Start:          in.Start,
		End:            in.End,
		Assignees:      in.Assignees,
	}
	if err := s.checkConflicts(ctx, candidate); err != nil {
		return model.Event{}, err
	}

	now := s.clock.Now()
	e := model.Event{
		ID:             s.ids.Next(),
		OrganizationID: in.OrganizationID,
		Title:          in.Title,
		Start:          in.Start,
		End:            in.End,
		Assignees:      in.Assignees,
		Version:        1,
		CreatedBy:      in.CreatedBy,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.repo.InsertEvent(ctx, e.Clone()); err != nil {
		if errors.Is(err, model.ErrOverlap) {
			return model.Event{}, s.conflictFromStore(ctx, e)
		}
		return model.Event{}, fmt.Errorf("create event: %w", err)
	}

	msg := s.pub.Publish(bus.OrgChannel(e.OrganizationID), EventCreated, e.Clone())
	s.logger.Debug("event created",
		"org", e.OrganizationID,
		"event_id", e.ID,
		"assignees", len(e.Assignees),
		"sequence", msg.Sequence,
	)
	return e, nil
}

// UpdateEvent applies in to the event with the given id. The proposed
// interval and assignees are checked for conflicts against every other
// event of the organization. On success the version increases by one.
func (s *Store) UpdateEvent(ctx context.Context, id string, in UpdateInput) (model.Event, error) {
	cur, unlock, err := s.lockEvent(ctx, id)
	if err != nil {
		return model.Event{}, err
	}
	defer unlock()

	if in.ExpectedVersion != nil && *in.ExpectedVersion != cur.Version {
		return model.Event{}, model.VersionMismatch(id, *in.ExpectedVersion, cur.Version)
	}

	next, err := applyUpdate(cur, in)
	if err != nil {
		return model.Event{}, err
	}
	if err := s.checkConflicts(ctx, next); err != nil {
		return model.Event{}, err
	}

	next.Version = cur.Version + 1
	next.UpdatedAt = s.clock.Now()
	if err := s.repo.ReplaceEvent(ctx, next.Clone(), cur.Version); err != nil {
		switch {
		case errors.Is(err, model.ErrStaleWrite):
			return model.Event{}, s.staleWrite(ctx, id, cur.Version)
		case errors.Is(err, model.ErrOverlap):
			return model.Event{}, s.conflictFromStore(ctx, next)
		}
		return model.Event{}, fmt.Errorf("update event: %w", err)
	}

	msg := s.pub.Publish(bus.OrgChannel(next.OrganizationID), EventUpdated, next.Clone())
	s.logger.Debug("event updated",
		"org", next.OrganizationID,
		"event_id", next.ID,
		"version", next.Version,
		"sequence", msg.Sequence,
	)
	return next, nil
}

// DeleteEvent removes the event with the given id and announces it with the
// pre-deletion event as payload.
func (s *Store) DeleteEvent(ctx context.Context, id string, opts DeleteOptions) error {
	cur, unlock, err := s.lockEvent(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if opts.ExpectedVersion != nil && *opts.ExpectedVersion != cur.Version {
		return model.VersionMismatch(id, *opts.ExpectedVersion, cur.Version)
	}

	if err := s.repo.DeleteEvent(ctx, id, cur.Version); err != nil {
		if errors.Is(err, model.ErrStaleWrite) {
			return s.staleWrite(ctx, id, cur.Version)
		}
		return fmt.Errorf("delete event: %w", err)
	}

	msg := s.pub.Publish(bus.OrgChannel(cur.OrganizationID), EventDeleted, cur.Clone())
	s.logger.Debug("event deleted",
		"org", cur.OrganizationID,
		"event_id", id,
		"sequence", msg.Sequence,
	)
	return nil
}

// GetEvent returns the event with the given id or EVENT_NOT_FOUND.
func (s *Store) GetEvent(ctx context.Context, id string) (model.Event, error) {
	e, ok, err := s.repo.GetEvent(ctx, strings.TrimSpace(id))
	if err != nil {
		return model.Event{}, fmt.Errorf("get event: %w", err)
	}
	if !ok {
		return model.Event{}, model.NotFound(id)
	}
	return e, nil
}

// ListEvents returns the organization's events intersecting the optional
// [Start, End) filter. Callers must not rely on the order.
func (s *Store) ListEvents(ctx context.Context, q ListQuery) ([]model.Event, error) {
	org := strings.TrimSpace(q.OrganizationID)
	if org == "" {
		return nil, model.EventInvalid("organization is required")
	}
	if q.Start != nil && q.End != nil && !q.Start.Before(*q.End) {
		return nil, model.EventInvalid("start must be before end")
	}
	events, err := s.repo.ListEvents(ctx, model.EventFilter{
		OrganizationID: org,
		From:           q.Start,
		To:             q.End,
		Assignees:      q.Assignees,
	})
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

// lockEvent reads the event, takes its organization's lock, and re-reads it
// so the returned state cannot change until unlock is called.
func (s *Store) lockEvent(ctx context.Context, id string) (model.Event, func(), error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return model.Event{}, nil, model.NotFound(id)
	}
	probe, err := s.GetEvent(ctx, id)
	if err != nil {
		return model.Event{}, nil, err
	}

	unlock := s.locks.lock(probe.OrganizationID)
	cur, ok, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		unlock()
		return model.Event{}, nil, fmt.Errorf("get event: %w", err)
	}
	if !ok {
		unlock()
		return model.Event{}, nil, model.NotFound(id)
	}
	return cur, unlock, nil
}

// checkConflicts fails with EVENT_CONFLICT if any other event of e's
// organization overlaps e and shares an assignee.
func (s *Store) checkConflicts(ctx context.Context, e model.Event) error {
	clashes, err := s.repo.ListEvents(ctx, model.EventFilter{
		OrganizationID: e.OrganizationID,
		From:           &e.Start,
		To:             &e.End,
		Assignees:      e.Assignees,
		ExcludeID:      e.ID,
	})
	if err != nil {
		return fmt.Errorf("check conflicts: %w", err)
	}
	if len(clashes) == 0 {
		return nil
	}

	sort.Slice(clashes, func(i, j int) bool {
		if !clashes[i].Start.Equal(clashes[j].Start) {
			return clashes[i].Start.Before(clashes[j].Start)
		}
		return clashes[i].ID < clashes[j].ID
	})
	first := clashes[0]
	var shared []string
	for _, u := range e.Assignees {
		if first.HasAssignee(u) {
			shared = append(shared, u)
		}
	}
	s.logger.Debug("event conflict",
		"org", e.OrganizationID,
		"event_id", e.ID,
		"conflicting_event_id", first.ID,
	)
	return model.Conflict(e.OrganizationID, e.ID, first.ID, shared)
}

// conflictFromStore builds the conflict error after the repository rejected
// a write another process raced in ahead of us.
func (s *Store) conflictFromStore(ctx context.Context, e model.Event) error {
	if err := s.checkConflicts(ctx, e); err != nil {
		return err
	}
	return &model.Error{
		Code:           model.CodeEventConflict,
		Message:        "overlaps an existing event",
		OrganizationID: e.OrganizationID,
		EventID:        e.ID,
	}
}

// staleWrite reports a lost version compare-and-swap.
func (s *Store) staleWrite(ctx context.Context, id string, expected int64) error {
	cur, ok, err := s.repo.GetEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("get event: %w", err)
	}
	if !ok {
		return model.NotFound(id)
	}
	return model.VersionMismatch(id, expected, cur.Version)
}
