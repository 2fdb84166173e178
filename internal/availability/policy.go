package availability

import (
	"fmt"
	"strings"
	"time"
)

// Uncovered selects how query time outside a cache record's declared range
// is treated.
type Uncovered string

const (
	// UncoveredBusy reports uncovered time as busy.
	UncoveredBusy Uncovered = "busy"
	// UncoveredFree ignores uncovered time.
	UncoveredFree Uncovered = "free"
)

// ParseUncovered parses "busy" or "free". The empty string means busy.
func ParseUncovered(s string) (Uncovered, error) {
	switch Uncovered(strings.ToLower(strings.TrimSpace(s))) {
	case "", UncoveredBusy:
		return UncoveredBusy, nil
	case UncoveredFree:
		return UncoveredFree, nil
	}
	return "", fmt.Errorf("unknown uncovered policy %q (want busy or free)", s)
}

// Policy decides how far a cache record can be trusted.
//
// A user without a record contributes no external busy time. For a user with
// a record, the parts of the query range outside the record's declared range
// are uncovered. When MaxAge is positive and the record was fetched longer
// ago than MaxAge, the record is stale and the whole query range is
// uncovered.
type Policy struct {
	Uncovered Uncovered
	MaxAge    time.Duration
}

// DefaultPolicy treats uncovered time as busy and never expires records.
func DefaultPolicy() Policy {
	return Policy{Uncovered: UncoveredBusy}
}

func (p Policy) stale(fetchedAt, now time.Time) bool {
	return p.MaxAge > 0 && now.Sub(fetchedAt) > p.MaxAge
}
