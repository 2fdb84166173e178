package schedule

import (
	"context"
	"time"

	"github.com/roach88/huddle/internal/model"
)

// Lifecycle message types published on the organization channel.
const (
	EventCreated = "event.created"
	EventUpdated = "event.updated"
	EventDeleted = "event.deleted"
)

// Repository is the persistence collaborator for events.
//
// InsertEvent and ReplaceEvent must fail with model.ErrOverlap when the
// written event would overlap another event of its organization sharing an
// assignee. ReplaceEvent and DeleteEvent must fail with model.ErrStaleWrite
// when the stored version differs from the one given.
type Repository interface {
	InsertEvent(ctx context.Context, e model.Event) error
	ReplaceEvent(ctx context.Context, e model.Event, prevVersion int64) error
	DeleteEvent(ctx context.Context, id string, version int64) error
	GetEvent(ctx context.Context, id string) (model.Event, bool, error)
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error)
}

// CreateInput describes a new event.
type CreateInput struct {
	OrganizationID string
	Title          string
	Start          time.Time
	End            time.Time
	Assignees      []string
	CreatedBy      string
}

// UpdateInput describes changes to an event. Nil fields are left unchanged.
type UpdateInput struct {
	Title     *string
	Start     *time.Time
	End       *time.Time
	Assignees []string

	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int64
}

// DeleteOptions guards a delete.
type DeleteOptions struct {
	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int64
}

// ListQuery selects events of one organization. Nil bounds are unbounded.
type ListQuery struct {
	OrganizationID string
	Start          *time.Time
	End            *time.Time
	Assignees      []string
}
