package cli

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/huddle/internal/feeds"
	"github.com/roach88/huddle/internal/model"
)

// Text renderings of command results. JSON output encodes the same values
// through the model's field tags.

type eventView model.Event

func (v eventView) String() string {
	return fmt.Sprintf("%s  v%d  %s  %s  [%s]",
		v.ID, v.Version, formatRange(v.Start, v.End), v.Title, strings.Join(v.Assignees, ", "))
}

type eventListView []model.Event

func (v eventListView) String() string {
	if len(v) == 0 {
		return "No events."
	}
	lines := make([]string, len(v))
	for i, e := range v {
		lines[i] = eventView(e).String()
	}
	return strings.Join(lines, "\n")
}

func sortEvents(events []model.Event) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Start.Equal(events[j].Start) {
			return events[i].Start.Before(events[j].Start)
		}
		return events[i].ID < events[j].ID
	})
}

type recordView model.CacheRecord

func (v recordView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s/%s  %s  fetched %s  %d busy",
		v.OrganizationID, v.UserID, formatRange(v.RangeStart, v.RangeEnd),
		model.FormatTime(v.FetchedAt), len(v.Busy))
	for _, busy := range v.Busy {
		fmt.Fprintf(&b, "\n  %s  %s%s%s", formatRange(busy.Start, busy.End), busy.Source,
			suffix(busy.ReferenceID), suffix(busy.Label))
	}
	return b.String()
}

type recordListView []model.CacheRecord

func (v recordListView) String() string {
	if len(v) == 0 {
		return "No cache records."
	}
	lines := make([]string, len(v))
	for i, r := range v {
		lines[i] = recordView(r).String()
	}
	return strings.Join(lines, "\n")
}

type availabilityView model.AvailabilityResult

func (v availabilityView) String() string {
	var b strings.Builder
	if len(v.Windows) == 0 {
		b.WriteString("No shared free time.")
	} else {
		b.WriteString("Free:")
		for _, w := range v.Windows {
			fmt.Fprintf(&b, "\n  %s", formatRange(w.Start, w.End))
		}
	}

	users := make([]string, 0, len(v.Conflicts))
	for u := range v.Conflicts {
		users = append(users, u)
	}
	sort.Strings(users)
	for _, u := range users {
		fmt.Fprintf(&b, "\nBusy %s:", u)
		if len(v.Conflicts[u]) == 0 {
			b.WriteString(" none")
		}
		for _, busy := range v.Conflicts[u] {
			fmt.Fprintf(&b, "\n  %s  %s %s%s", formatRange(busy.Start, busy.End),
				busy.Source, busy.ReferenceID, suffix(busy.Label))
		}
	}
	return b.String()
}

type importView struct {
	Feed   string            `json:"feed"`
	Record model.CacheRecord `json:"record"`
	Stats  feeds.ParseStats  `json:"stats"`
}

func newImportView(f feeds.Feed, res feeds.Result) importView {
	return importView{Feed: f.String(), Record: res.Record, Stats: res.Stats}
}

func (v importView) String() string {
	return fmt.Sprintf("%s: imported %d of %d events (%d recurring first instance only, %d skipped, %d outside) over %s",
		v.Feed, v.Stats.Imported, v.Stats.Events, v.Stats.Recurring, v.Stats.Skipped, v.Stats.Outside,
		formatRange(v.Record.RangeStart, v.Record.RangeEnd))
}

type syncView struct {
	Imports []importView `json:"imports"`
	Failed  []string     `json:"failed,omitempty"`
}

func (v syncView) String() string {
	lines := make([]string, 0, len(v.Imports)+len(v.Failed)+1)
	for _, im := range v.Imports {
		lines = append(lines, "✓ "+im.String())
	}
	for _, f := range v.Failed {
		lines = append(lines, "✗ "+f)
	}
	var recurring, skipped int
	for _, im := range v.Imports {
		recurring += im.Stats.Recurring
		skipped += im.Stats.Skipped
	}
	lines = append(lines, fmt.Sprintf("Sync Summary: %d imported, %d failed, %d recurring first instance only, %d events skipped",
		len(v.Imports), len(v.Failed), recurring, skipped))
	return strings.Join(lines, "\n")
}

func formatRange(start, end time.Time) string {
	return model.FormatTime(start) + " .. " + model.FormatTime(end)
}

func suffix(s string) string {
	if s == "" {
		return ""
	}
	return "  " + s
}

// parseTimeFlag parses an RFC 3339 flag value.
func parseTimeFlag(name, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s %q: want RFC 3339 (2026-01-05T09:00:00Z)", name, value)
	}
	return t.UTC(), nil
}
