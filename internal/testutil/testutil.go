// Package testutil provides testing utilities for cyto tests.
package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/sbtinstruments/cyto/internal/event"
)

// WaitFor polls cond until it returns true or the timeout elapses.
// It fails the test on timeout with the given message.
func WaitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for: %s", timeout, msg)
}

// EventRecorder captures events from a bus for later assertions.
// It is safe for concurrent use.
type EventRecorder struct {
	mu     sync.Mutex
	events []event.Event
}

// NewEventRecorder creates a recorder subscribed to all events on the bus.
func NewEventRecorder(bus *event.Bus) *EventRecorder {
	r := &EventRecorder{}
	bus.SubscribeAll(r.record)
	return r
}

func (r *EventRecorder) record(e event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of all captured events, in arrival order.
func (r *EventRecorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Event, len(r.events))
	copy(out, r.events)
	return out
}

// StateChanges returns the captured NodeStateChangedEvents for the given
// node id, in arrival order. An empty id returns changes for all nodes.
func (r *EventRecorder) StateChanges(nodeID string) []event.NodeStateChangedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []event.NodeStateChangedEvent
	for _, e := range r.events {
		changed, ok := e.(event.NodeStateChangedEvent)
		if !ok {
			continue
		}
		if nodeID == "" || changed.NodeID == nodeID {
			out = append(out, changed)
		}
	}
	return out
}

// FinalState returns the last recorded state for the node and whether any
// transition was recorded for it at all.
func (r *EventRecorder) FinalState(nodeID string) (string, bool) {
	changes := r.StateChanges(nodeID)
	if len(changes) == 0 {
		return "", false
	}
	return changes[len(changes)-1].NewState, true
}

// CountType returns how many captured events have the given event type.
func (r *EventRecorder) CountType(eventType string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := 0
	for _, e := range r.events {
		if e.EventType() == eventType {
			count++
		}
	}
	return count
}
