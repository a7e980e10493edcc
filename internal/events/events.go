// Package events announces rest periods to external listeners.
package events

import (
	"context"
	"time"
)

// Kind names a rest period transition.
type Kind string

const (
	// RestStarted is sent when palming begins.
	RestStarted Kind = "started"
	// RestEnded is sent when palming stops, carrying the held duration.
	RestEnded Kind = "ended"
)

// Event describes one rest period transition.
type Event struct {
	Kind      Kind      `json:"event"`
	StreamID  string    `json:"stream_id"`
	Seconds   int       `json:"duration_s"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Recorder keeps published events in memory, for tests.
type Recorder struct {
	ch chan Event
}

// NewRecorder creates a Recorder that buffers up to size events.
func NewRecorder(size int) *Recorder {
	return &Recorder{ch: make(chan Event, size)}
}

// Publish stores ev, dropping it if the buffer is full.
func (r *Recorder) Publish(_ context.Context, ev Event) error {
	select {
	case r.ch <- ev:
	default:
	}
	return nil
}

// Events returns the channel of recorded events.
func (r *Recorder) Events() <-chan Event {
	return r.ch
}

func (r *Recorder) Close() error { return nil }

// Fanout delivers each event to every publisher, returning the first error.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var first error
	for _, p := range f {
		if err := p.Publish(ctx, ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f Fanout) Close() error {
	var first error
	for _, p := range f {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
