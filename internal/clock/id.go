package clock

import (
	"github.com/google/uuid"
)

// IDGenerator produces unique string identifiers for new events.
type IDGenerator interface {
	Next() string
}

// UUIDv7Generator generates time-sortable UUIDv7 identifiers.
//
// UUIDv7 embeds a timestamp in the most significant bits, so event IDs sort
// roughly by creation time, which keeps SQLite primary key inserts local.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Next creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Next() string {
	return uuid.Must(uuid.NewV7()).String()
}
