// Package bus implements the in-process lifecycle notification bus.
//
// Contract:
//   - Publish assigns a bus-wide sequence number (starting at 1, never
//     reused) and delivers synchronously to the channel's subscribers in
//     subscription order.
//   - A failing or panicking handler is logged and skipped; it never stops
//     delivery to later handlers and never fails Publish.
//   - Delivery uses a snapshot of the subscriber list taken at publish time,
//     so subscribing or unsubscribing during dispatch does not affect the
//     message in flight.
//
// Publish does not serialize concurrent publishers. Callers that need
// per-channel commit order (the event store) publish while holding their
// own write lock.
package bus

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/huddle/internal/clock"
)

// Message is a single delivered notification.
type Message struct {
	Channel   string    `json:"channel"`
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Sequence  int64     `json:"sequence"`
	Timestamp time.Time `json:"timestamp"`
}

// Handler consumes a message. A returned error is logged, not propagated.
type Handler func(Message) error

// Publisher is the publish capability the event store depends on.
type Publisher interface {
	Publish(channel, typ string, payload any) Message
}

// Subscriber is the subscribe capability handed to consumers.
type Subscriber interface {
	Subscribe(channel string, h Handler) (unsubscribe func())
}

// OrgChannel returns the channel lifecycle messages for orgID are published on.
func OrgChannel(orgID string) string {
	return "org:" + orgID
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler failures.
func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) {
		if l != nil {
			b.logger = l
		}
	}
}

// WithSequence injects the sequence generator. Used to resume numbering.
func WithSequence(s *clock.Sequence) Option {
	return func(b *Bus) {
		if s != nil {
			b.seq = s
		}
	}
}

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an in-memory synchronous pub/sub bus. The zero value is not usable;
// construct with New.
type Bus struct {
	clock  clock.Clock
	seq    *clock.Sequence
	logger *slog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
}

// New creates a bus stamping messages with clk.
func New(clk clock.Clock, opts ...Option) *Bus {
	if clk == nil {
		clk = clock.System{}
	}
	b := &Bus{
		clock:  clk,
		seq:    clock.NewSequence(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		subs:   make(map[string][]subscription),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h on channel. The returned function removes the
// registration; calling it more than once is a no-op.
func (b *Bus) Subscribe(channel string, h Handler) func() {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[channel] = append(b.subs[channel], subscription{id: id, handler: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			subs := b.subs[channel]
			for i, s := range subs {
				if s.id == id {
					// Copy rather than splice in place so snapshots taken by an
					// in-flight Publish keep their backing array intact.
					next := make([]subscription, 0, len(subs)-1)
					next = append(next, subs[:i]...)
					next = append(next, subs[i+1:]...)
					if len(next) == 0 {
						delete(b.subs, channel)
					} else {
						b.subs[channel] = next
					}
					return
				}
			}
		})
	}
}

// Publish stamps and delivers a message, returning it as delivered.
func (b *Bus) Publish(channel, typ string, payload any) Message {
	b.mu.Lock()
	msg := Message{
		Channel:   channel,
		Type:      typ,
		Payload:   payload,
		Sequence:  b.seq.Next(),
		Timestamp: b.clock.Now(),
	}
	snapshot := b.subs[channel]
	b.mu.Unlock()

	for _, s := range snapshot {
		b.deliver(s, msg)
	}
	return msg
}

// Sequence returns the last sequence number issued.
func (b *Bus) Sequence() int64 {
	return b.seq.Current()
}

func (b *Bus) deliver(s subscription, msg Message) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus handler panicked",
				"channel", msg.Channel,
				"type", msg.Type,
				"sequence", msg.Sequence,
				"subscription", s.id,
				"panic", fmt.Sprint(r),
			)
		}
	}()
	if err := s.handler(msg); err != nil {
		b.logger.Warn("bus handler failed",
			"channel", msg.Channel,
			"type", msg.Type,
			"sequence", msg.Sequence,
			"subscription", s.id,
			"error", err,
		)
	}
}
