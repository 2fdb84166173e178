package schedule

import (
	"strings"
	"time"

	"github.com/roach88/huddle/internal/model"
)

// normalizeAssignees trims, rejects blanks, and removes duplicates while
// keeping first-occurrence order.
func normalizeAssignees(in []string) ([]string, error) {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, a := range in {
		a = strings.TrimSpace(a)
		if a == "" {
			return nil, model.EventInvalid("assignee identifiers must not be blank")
		}
		if seen[a] {
			continue
		}
		seen[a] = true
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, model.EventInvalid("at least one assignee is required")
	}
	return out, nil
}

func validateInterval(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return model.EventInvalid("start and end are required")
	}
	if !start.Before(end) {
		return model.EventInvalid("start must be before end")
	}
	if !model.InTimeRange(start, end) {
		return model.EventInvalid("times must fall between %s and %s",
			model.MinTime.Format(time.RFC3339), model.MaxTime.Format(time.RFC3339))
	}
	return nil
}

func normalizeCreate(in CreateInput) (CreateInput, error) {
	in.OrganizationID = strings.TrimSpace(in.OrganizationID)
	if in.OrganizationID == "" {
		return in, model.EventInvalid("organization is required")
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return in, model.EventInvalid("title is required")
	}
	if err := validateInterval(in.Start, in.End); err != nil {
		return in, err
	}
	in.Start, in.End = in.Start.UTC(), in.End.UTC()

	assignees, err := normalizeAssignees(in.Assignees)
	if err != nil {
		return in, err
	}
	in.Assignees = assignees
	in.CreatedBy = strings.TrimSpace(in.CreatedBy)
	return in, nil
}

// applyUpdate returns cur with in applied and validated. cur is not modified.
func applyUpdate(cur model.Event, in UpdateInput) (model.Event, error) {
	next := cur.Clone()
	if in.Title != nil {
		next.Title = strings.TrimSpace(*in.Title)
		if next.Title == "" {
			return cur, model.EventInvalid("title is required")
		}
	}
	if in.Start != nil {
		next.Start = in.Start.UTC()
	}
	if in.End != nil {
		next.End = in.End.UTC()
	}
	if err := validateInterval(next.Start, next.End); err != nil {
		return cur, err
	}
	if in.Assignees != nil {
		assignees, err := normalizeAssignees(in.Assignees)
		if err != nil {
			return cur, err
		}
		next.Assignees = assignees
	}
	return next, nil
}
