package events

import (
	"sync"

	"rentalchain/core/types"
)

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Wrap adapts a raw event payload to the Event interface.
func Wrap(evt *types.Event) Event { return wrapped{evt: evt} }

type wrapped struct {
	evt *types.Event
}

func (w wrapped) EventType() string {
	if w.evt == nil {
		return ""
	}
	return w.evt.Type
}

func (w wrapped) Event() *types.Event { return w.evt }

// Recorder keeps every emitted event in memory. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []*types.Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil || evt.Event() == nil {
		return
	}
	r.mu.Lock()
	r.events = append(r.events, evt.Event())
	r.mu.Unlock()
}

// Events returns a copy of the recorded events in emission order.
func (r *Recorder) Events() []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events with the given type.
func (r *Recorder) OfType(eventType string) []*types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*types.Event
	for _, evt := range r.events {
		if evt.Type == eventType {
			out = append(out, evt)
		}
	}
	return out
}

// Buffer holds events until the surrounding call either commits or reverts.
// Events from a reverted call never reach downstream subscribers.
type Buffer struct {
	pending []Event
}

// Emit implements the Emitter interface.
func (b *Buffer) Emit(evt Event) {
	if evt == nil {
		return
	}
	b.pending = append(b.pending, evt)
}

// Mark returns the current buffer position.
func (b *Buffer) Mark() int { return len(b.pending) }

// Rollback drops every event emitted after mark.
func (b *Buffer) Rollback(mark int) {
	if mark < 0 || mark > len(b.pending) {
		return
	}
	b.pending = b.pending[:mark]
}

// Since returns the events emitted after mark.
func (b *Buffer) Since(mark int) []Event {
	if mark < 0 || mark > len(b.pending) {
		return nil
	}
	out := make([]Event, len(b.pending)-mark)
	copy(out, b.pending[mark:])
	return out
}

// Flush forwards the buffered events to the downstream emitter and clears
// the buffer.
func (b *Buffer) Flush(downstream Emitter) {
	if downstream != nil {
		for _, evt := range b.pending {
			downstream.Emit(evt)
		}
	}
	b.pending = b.pending[:0]
}
