package engine

import "sync"

// Event topics emitted through the EventSink. Payloads are small value
// types; subscribers must not retain references into engine state.
const (
	EventRowsChanged      = "rows:changed"
	EventColumnsChanged   = "columns:changed"
	EventCellsChanged     = "cells:changed"
	EventSelectionMoved   = "selection:moved"
	EventSavingState      = "saving:state"
	EventPopulateProgress = "populate:progress"
	EventEditFailed       = "edit:failed"
)

// EditFailure is the payload for EventEditFailed: a buffered edit that
// could not be persisted after its owning entity confirmed. The cache
// is reloaded so the grid converges on the server state.
type EditFailure struct {
	RowID    string
	ColumnID string
	Err      error
}

// PopulateProgress is the payload for EventPopulateProgress.
type PopulateProgress struct {
	Percent float64
	Status  string
	Done    bool
}

// EventSink receives engine change notifications. The UI layer implements
// this by forwarding to its render loop; tests use RecordingSink.
type EventSink interface {
	Emit(event string, data any)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(string, any) {}

// Emitted holds a single recorded emission for test assertions.
type Emitted struct {
	Event string
	Data  any
}

// RecordingSink is a test-friendly EventSink that records all calls.
type RecordingSink struct {
	mu     sync.Mutex
	events []Emitted
}

func (s *RecordingSink) Emit(event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Emitted{Event: event, Data: data})
}

// Events returns a copy of everything emitted so far.
func (s *RecordingSink) Events() []Emitted {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Emitted, len(s.events))
	copy(out, s.events)
	return out
}

// Count returns how many times the named event was emitted.
func (s *RecordingSink) Count(event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Event == event {
			n++
		}
	}
	return n
}
