package availability

import (
	"io"
	"log/slog"
	"time"

	"github.com/roach88/huddle/internal/clock"
)

// DefaultSlot is the slot size used when a query does not name one.
const DefaultSlot = 30 * time.Minute

type options struct {
	clock       clock.Clock
	logger      *slog.Logger
	policy      Policy
	defaultSlot time.Duration
}

func defaultOptions() options {
	return options{
		clock:       clock.System{},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		policy:      DefaultPolicy(),
		defaultSlot: DefaultSlot,
	}
}

// Option configures a Cache or an Engine.
type Option func(*options)

// WithClock sets the clock used for FetchedAt and GeneratedAt.
func WithClock(c clock.Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPolicy sets the staleness policy. Engine only.
func WithPolicy(p Policy) Option {
	return func(o *options) {
		if p.Uncovered == "" {
			p.Uncovered = UncoveredBusy
		}
		o.policy = p
	}
}

// WithDefaultSlot sets the slot size used when a query passes zero.
// Engine only.
func WithDefaultSlot(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.defaultSlot = d
		}
	}
}
