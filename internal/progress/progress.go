// Package progress implements the Progress Stream (spec §4.7): a bounded,
// best-effort event channel with a drop-oldest back-pressure policy, closed
// once a terminal (complete/error) event is emitted.
package progress

import (
	"sync"
	"sync/atomic"

	"github.com/rororowyourboat/psuu/internal/paramspace"
)

// EventType is the wire-level kind of one Progress Stream event (spec §6).
type EventType string

const (
	EventStep     EventType = "step"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// DefaultBufferSize is the channel capacity used when a Controller does not
// override it.
const DefaultBufferSize = 256

// Event is one message on the Progress Stream. Its JSON tags are this
// package's own convenience form, not the §6 wire vocabulary (e.g.
// "bestKpis" vs "bestKPIs", flat fields vs a nested result object): no
// HTTP/SSE transport exists here (an explicit Non-goal), and nothing in
// this module marshals Event for an external consumer. A future seam that
// assumes one should reconcile the tags there rather than here.
type Event struct {
	Type           EventType         `json:"type"`
	Step           int               `json:"step,omitempty"`
	Parameters     paramspace.Vector `json:"parameters,omitempty"`
	KPIs           map[string]float64 `json:"kpis,omitempty"`
	ObjectiveValue float64           `json:"objectiveValue,omitempty"`
	ElapsedMs      int64             `json:"elapsedMs,omitempty"`
	Status         string            `json:"status,omitempty"`

	BestParameters paramspace.Vector `json:"bestParameters,omitempty"`
	BestKPIs       map[string]float64 `json:"bestKpis,omitempty"`
	Iterations     int               `json:"iterations,omitempty"`
	ElapsedSeconds float64           `json:"elapsedSeconds,omitempty"`
	Cancelled      bool              `json:"cancelled,omitempty"`

	Message string `json:"message,omitempty"`
}

// Stream is a bounded event channel; Emit and EmitTerminal are serialized by
// a mutex, so several goroutines may produce events. Emit never blocks: once full, the oldest queued event is dropped to make room
// and Dropped is incremented, matching the teacher's counted-drop metrics
// convention rather than blocking the Controller's worker pool on a slow
// reader.
type Stream struct {
	mu      sync.Mutex
	ch      chan Event
	dropped int64
	closed  bool
}

// NewStream builds a Stream with the given channel capacity. size<=0 uses
// DefaultBufferSize.
func NewStream(size int) *Stream {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Stream{ch: make(chan Event, size)}
}

// Events returns the read side of the stream.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Dropped reports how many events have been dropped for back-pressure.
func (s *Stream) Dropped() int64 {
	return atomic.LoadInt64(&s.dropped)
}

// Emit enqueues a non-terminal event, dropping the oldest queued event if
// the buffer is full. A no-op once the stream has been closed by a terminal
// event.
func (s *Stream) Emit(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.enqueue(ev)
}

// EmitTerminal enqueues a complete or error event and closes the stream; no
// further events (terminal or not) are accepted afterward.
func (s *Stream) EmitTerminal(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.enqueue(ev)
	s.closed = true
	close(s.ch)
}

func (s *Stream) enqueue(ev Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}
	select {
	case <-s.ch:
		atomic.AddInt64(&s.dropped, 1)
	default:
	}
	select {
	case s.ch <- ev:
	default:
		atomic.AddInt64(&s.dropped, 1)
	}
}
