// Package telemetrytest provides an in-memory telemetry sink for tests.
package telemetrytest

import (
	"sync"

	"github.com/capitalize-ai/retention-chat/internal/model"
)

// Recorded is one event captured by a Recorder.
type Recorded struct {
	Event model.EventType
	Props map[string]any
}

// Recorder keeps every event in memory. Safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Recorded
}

// Track records the event.
func (r *Recorder) Track(event model.EventType, props map[string]any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, Recorded{Event: event, Props: props})
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Recorded(nil), r.events...)
}

// Count returns how many times event was recorded.
func (r *Recorder) Count(event model.EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Event == event {
			n++
		}
	}
	return n
}

// Last returns the most recent occurrence of event.
func (r *Recorder) Last(event model.EventType) (Recorded, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Event == event {
			return r.events[i], true
		}
	}
	return Recorded{}, false
}
