package interval

import (
	"sort"
	"time"
)

// Span is a half-open time interval [Start, End).
type Span struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// New returns the span [start, end).
func New(start, end time.Time) Span {
	return Span{Start: start, End: end}
}

// Valid reports whether Start < End.
func (s Span) Valid() bool {
	return s.Start.Before(s.End)
}

// Duration returns End - Start.
func (s Span) Duration() time.Duration {
	return s.End.Sub(s.Start)
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return !other.Start.Before(s.Start) && !other.End.After(s.End)
}

// Overlaps reports whether a and b share any instant.
// Touching endpoints do not conflict.
func Overlaps(a, b Span) bool {
	return a.Start.Before(b.End) && b.Start.Before(a.End)
}

// Clip intersects s with bound. The second result is false when the
// intersection is empty.
func Clip(s, bound Span) (Span, bool) {
	out := s
	if out.Start.Before(bound.Start) {
		out.Start = bound.Start
	}
	if out.End.After(bound.End) {
		out.End = bound.End
	}
	if !out.Valid() {
		return Span{}, false
	}
	return out, true
}

// Partition splits rng into consecutive slots of length size, in order.
// The final slot is truncated when the range is not an exact multiple of
// size. Returns nil for a non-positive size or an empty range.
func Partition(rng Span, size time.Duration) []Span {
	if size <= 0 || !rng.Valid() {
		return nil
	}
	n := int(rng.Duration() / size)
	if rng.Duration()%size != 0 {
		n++
	}
	slots := make([]Span, 0, n)
	for cur := rng.Start; cur.Before(rng.End); {
		next := cur.Add(size)
		if next.After(rng.End) {
			next = rng.End
		}
		slots = append(slots, Span{Start: cur, End: next})
		cur = next
	}
	return slots
}

// MergeContiguous merges runs of adjacent spans (spans[i].End equals
// spans[i+1].Start) into maximal windows. Spans that are not adjacent are
// kept as they are. The input order is preserved.
func MergeContiguous(spans []Span) []Span {
	if len(spans) == 0 {
		return nil
	}
	out := make([]Span, 0, len(spans))
	cur := spans[0]
	for _, s := range spans[1:] {
		if cur.End.Equal(s.Start) {
			cur.End = s.End
			continue
		}
		out = append(out, cur)
		cur = s
	}
	return append(out, cur)
}

// Union sorts spans and coalesces any that overlap or touch.
// Invalid spans are ignored.
func Union(spans []Span) []Span {
	valid := make([]Span, 0, len(spans))
	for _, s := range spans {
		if s.Valid() {
			valid = append(valid, s)
		}
	}
	if len(valid) == 0 {
		return nil
	}
	sort.Slice(valid, func(i, j int) bool {
		return valid[i].Start.Before(valid[j].Start)
	})

	out := []Span{valid[0]}
	for _, s := range valid[1:] {
		last := &out[len(out)-1]
		if !s.Start.After(last.End) {
			if s.End.After(last.End) {
				last.End = s.End
			}
			continue
		}
		out = append(out, s)
	}
	return out
}

// Subtract returns the portions of bound not covered by any span in covered,
// in chronological order.
func Subtract(bound Span, covered []Span) []Span {
	if !bound.Valid() {
		return nil
	}
	var gaps []Span
	cur := bound.Start
	for _, c := range Union(covered) {
		c, ok := Clip(c, bound)
		if !ok {
			continue
		}
		if cur.Before(c.Start) {
			gaps = append(gaps, Span{Start: cur, End: c.Start})
		}
		if c.End.After(cur) {
			cur = c.End
		}
	}
	if cur.Before(bound.End) {
		gaps = append(gaps, Span{Start: cur, End: bound.End})
	}
	return gaps
}
