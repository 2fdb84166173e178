package testutil

import (
	"sync"

	"github.com/roach88/huddle/internal/bus"
)

// Recorder captures every message delivered to it, in delivery order.
type Recorder struct {
	mu   sync.Mutex
	msgs []bus.Message
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Handle implements bus.Handler.
func (r *Recorder) Handle(m bus.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, m)
	return nil
}

// Messages returns a copy of the recorded messages.
func (r *Recorder) Messages() []bus.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bus.Message(nil), r.msgs...)
}

// Types returns the recorded message types in order.
func (r *Recorder) Types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]string, len(r.msgs))
	for i, m := range r.msgs {
		types[i] = m.Type
	}
	return types
}

// Len returns the number of recorded messages.
func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}
