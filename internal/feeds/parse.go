package feeds

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	"github.com/roach88/huddle/internal/interval"
	"github.com/roach88/huddle/internal/model"
)

// ParseStats counts what a parse did with each VEVENT. Recurring counts
// events whose later instances were not expanded; their first instance is
// still imported.
type ParseStats struct {
	Events    int `json:"events"`
	Imported  int `json:"imported"`
	Recurring int `json:"recurring"`
	Skipped   int `json:"skipped"`
	Outside   int `json:"outside"`
}

// ParseOptions controls how VEVENTs become busy intervals.
type ParseOptions struct {
	// Label, when set, replaces every event summary. Use it to keep titles
	// of private calendars out of the cache.
	Label string
}

// ParseBusy reads an ICS calendar and returns the busy intervals it
// describes within rng, clipped to rng and ordered by start.
//
// Each interval carries the event UID as ReferenceID and its SUMMARY as
// Label. All-day events without DTEND last one day. Timed events without
// DTEND are skipped. Recurring events block only their first instance.
func ParseBusy(r io.Reader, rng interval.Span, opts ParseOptions) ([]model.BusyInterval, ParseStats, error) {
	var stats ParseStats
	if !rng.Valid() {
		return nil, stats, errors.New("parse busy: empty range")
	}

	cal, err := ical.ParseCalendar(r)
	if err != nil {
		return nil, stats, fmt.Errorf("parse calendar: %w", err)
	}

	busy := []model.BusyInterval{}
	for _, ve := range cal.Events() {
		stats.Events++

		if !blocksTime(ve) {
			stats.Skipped++
			continue
		}

		span, ok := eventSpan(ve)
		if !ok {
			stats.Skipped++
			continue
		}
		if ve.GetProperty(ical.ComponentPropertyRrule) != nil {
			stats.Recurring++
		}
		span, ok = interval.Clip(span, rng)
		if !ok {
			stats.Outside++
			continue
		}

		b := model.BusyInterval{
			Start:  span.Start,
			End:    span.End,
			Source: model.SourceExternal,
			Label:  opts.Label,
		}
		if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
			b.ReferenceID = strings.TrimSpace(p.Value)
		}
		if b.Label == "" {
			if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
				b.Label = strings.TrimSpace(p.Value)
			}
		}
		busy = append(busy, b)
		stats.Imported++
	}

	sortBusy(busy)
	return busy, stats, nil
}

// blocksTime reports whether the event occupies its interval. Cancelled and
// transparent events do not.
func blocksTime(ve *ical.VEvent) bool {
	if p := ve.GetProperty(ical.ComponentPropertyStatus); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "CANCELLED") {
		return false
	}
	if p := ve.GetProperty(ical.ComponentPropertyTransp); p != nil && strings.EqualFold(strings.TrimSpace(p.Value), "TRANSPARENT") {
		return false
	}
	return true
}

func eventSpan(ve *ical.VEvent) (interval.Span, bool) {
	allDay := false
	start, err := ve.GetStartAt()
	if err != nil {
		start, err = ve.GetAllDayStartAt()
		if err != nil {
			return interval.Span{}, false
		}
		allDay = true
	}
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil && !strings.Contains(p.Value, "T") {
		allDay = true
	}

	var end time.Time
	if ve.GetProperty(ical.ComponentPropertyDtEnd) == nil {
		if !allDay {
			return interval.Span{}, false
		}
		end = start.AddDate(0, 0, 1)
	} else {
		end, err = ve.GetEndAt()
		if err != nil {
			end, err = ve.GetAllDayEndAt()
			if err != nil {
				return interval.Span{}, false
			}
		}
	}

	span := interval.New(start.UTC(), end.UTC())
	return span, span.Valid()
}

func sortBusy(busy []model.BusyInterval) {
	sort.SliceStable(busy, func(i, j int) bool {
		return busy[i].Start.Before(busy[j].Start)
	})
}
