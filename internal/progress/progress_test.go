package progress

import "testing"

func TestEmit_NonBlockingAndDropsOldestWhenFull(t *testing.T) {
	s := NewStream(2)
	s.Emit(Event{Type: EventStep, Step: 1})
	s.Emit(Event{Type: EventStep, Step: 2})
	s.Emit(Event{Type: EventStep, Step: 3}) // buffer full, drops step 1

	if s.Dropped() != 1 {
		t.Fatalf("expected 1 dropped event, got %d", s.Dropped())
	}

	first := <-s.Events()
	second := <-s.Events()
	if first.Step != 2 || second.Step != 3 {
		t.Fatalf("expected steps 2,3 to survive, got %d,%d", first.Step, second.Step)
	}
}

func TestEmitTerminal_ClosesStreamAndRejectsFurtherEvents(t *testing.T) {
	s := NewStream(4)
	s.Emit(Event{Type: EventStep, Step: 1})
	s.EmitTerminal(Event{Type: EventComplete, Iterations: 1})
	s.Emit(Event{Type: EventStep, Step: 2}) // must be a no-op

	var got []Event
	for ev := range s.Events() {
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("expected exactly 2 events (step then complete), got %d: %+v", len(got), got)
	}
	if got[0].Type != EventStep || got[1].Type != EventComplete {
		t.Fatalf("unexpected event order: %+v", got)
	}
}

func TestEmitTerminal_IdempotentWhenCalledTwice(t *testing.T) {
	s := NewStream(4)
	s.EmitTerminal(Event{Type: EventComplete})
	s.EmitTerminal(Event{Type: EventError, Message: "should be dropped"})

	var got []Event
	for ev := range s.Events() {
		got = append(got, ev)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the first terminal event, got %d", len(got))
	}
}
