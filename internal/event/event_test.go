package event_test

import (
	"testing"

	"github.com/snehjoshi/tickq/internal/event"
	"github.com/snehjoshi/tickq/internal/pairheap"
	"github.com/snehjoshi/tickq/internal/types"
)

// recorder collects delivered events in order.
type recorder struct {
	events []event.E
}

func (r *recorder) fn(e event.E) { r.events = append(r.events, e) }

func (r *recorder) names() []string {
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Name
	}
	return out
}

func newEventQueue() (*event.Queue, *event.Emitter) {
	em := event.NewEmitter()
	return event.Wrap(pairheap.New(nil), em), em
}

func TestEmitter_OnOffOnce(t *testing.T) {
	em := event.NewEmitter()
	rec := &recorder{}

	sub := em.On("ping", rec.fn)
	em.Emit("ping", 1)
	em.Off("ping", sub)
	em.Emit("ping", 2)

	if len(rec.events) != 1 || rec.events[0].Payload != 1 {
		t.Fatalf("want exactly the first ping, got %v", rec.events)
	}

	once := &recorder{}
	em.Once("pong", once.fn)
	em.Emit("pong", 1)
	em.Emit("pong", 2)
	if len(once.events) != 1 {
		t.Errorf("once listener fired %d times", len(once.events))
	}
}

func TestEmitter_DeliversInRegistrationOrder(t *testing.T) {
	em := event.NewEmitter()
	var order []int
	em.On("e", func(event.E) { order = append(order, 1) })
	em.On("e", func(event.E) { order = append(order, 2) })
	em.On("e", func(event.E) { order = append(order, 3) })

	em.Emit("e", nil)
	for i, want := range []int{1, 2, 3} {
		if order[i] != want {
			t.Fatalf("delivery order: want [1 2 3], got %v", order)
		}
	}
}

func TestEmitter_AllReceivesEverySpecificEvent(t *testing.T) {
	em := event.NewEmitter()
	all := &recorder{}
	em.On(event.All, all.fn)

	em.Emit("x", 1)
	em.Emit("y", 2)

	if len(all.events) != 2 {
		t.Fatalf("all listener got %d events, want 2", len(all.events))
	}
	if all.events[0].Name != "x" || all.events[1].Name != "y" {
		t.Errorf("all listener must see the specific names, got %v", all.names())
	}
}

func TestEmitter_PanickingListenerIsIsolated(t *testing.T) {
	em := event.NewEmitter()
	reached := false
	em.On("e", func(event.E) { panic("listener bug") })
	em.On("e", func(event.E) { reached = true })

	em.Emit("e", nil) // must not panic out
	if !reached {
		t.Error("listener after the panicking one was skipped")
	}
}

func TestQueue_EmitsAfterCommit(t *testing.T) {
	q, em := newEventQueue()

	// A poll listener must observe the post-poll size.
	var sizeInside int
	em.On(event.Poll, func(event.E) { sizeInside = q.Size() })

	if _, err := q.Insert(1, "a"); err != nil {
		t.Fatal(err)
	}
	q.Poll()
	if sizeInside != 0 {
		t.Errorf("listener saw size %d inside poll event, want post-poll 0", sizeInside)
	}
}

func TestQueue_EventTable(t *testing.T) {
	q, em := newEventQueue()
	all := &recorder{}
	em.On(event.All, all.fn)

	hd, err := q.InsertWithID(5, "x", "k")
	if err != nil {
		t.Fatal(err)
	}
	q.Peek()
	q.Has("k")
	q.Get("k")
	if _, err := q.SetPriority("k", 2); err != nil {
		t.Fatal(err)
	}
	q.Poll()
	if _, err := q.Insert(9, "y"); err != nil {
		t.Fatal(err)
	}
	q.Remove("y")
	q.Insert(1, "z")
	q.Clear()

	want := []string{
		event.Insert, event.Peek, event.Has, event.Get, event.Update,
		event.Poll, event.Insert, event.Remove, event.Insert, event.Clear,
	}
	got := all.names()
	if len(got) != len(want) {
		t.Fatalf("event sequence: want %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event sequence: want %v, got %v", want, got)
		}
	}

	// Spot-check payload shapes.
	if all.events[0].Payload != hd {
		t.Error("insert event must carry the handle")
	}
	if up, ok := all.events[4].Payload.(*types.Update); !ok || up.Before != 5 || up.After != 2 {
		t.Errorf("update event payload: got %v", all.events[4].Payload)
	}
	if it, ok := all.events[5].Payload.(*types.Item); !ok || it.Payload != "x" {
		t.Errorf("poll event payload: got %v", all.events[5].Payload)
	}
	if n, ok := all.events[9].Payload.(int); !ok || n != 1 {
		t.Errorf("clear event payload: got %v", all.events[9].Payload)
	}
}

func TestQueue_NoEventOnMissOrNoOp(t *testing.T) {
	q, em := newEventQueue()
	all := &recorder{}
	em.On(event.All, all.fn)

	q.Peek()        // empty → nil
	q.Poll()        // empty → nil
	q.Has("ghost")  // false
	q.Get("ghost")  // nil
	q.Remove("ghost")
	q.Clear() // zero dropped

	if len(all.events) != 0 {
		t.Fatalf("miss operations emitted events: %v", all.names())
	}

	// Equal-priority SetPriority is a no-op and emits nothing.
	if _, err := q.Insert(3, "x"); err != nil {
		t.Fatal(err)
	}
	all.events = nil
	if up, err := q.SetPriority("x", 3); err != nil || up != nil {
		t.Fatalf("equal setPriority: up=%v err=%v", up, err)
	}
	if len(all.events) != 0 {
		t.Errorf("no-op update emitted %v", all.names())
	}
}

func TestQueue_FailedInsertEmitsNothing(t *testing.T) {
	q, em := newEventQueue()
	all := &recorder{}
	em.On(event.All, all.fn)

	if _, err := q.InsertWithID(1, "x", "k"); err != nil {
		t.Fatal(err)
	}
	all.events = nil

	if _, err := q.InsertWithID(2, "y", "k"); err == nil {
		t.Fatal("duplicate id must fail")
	}
	if len(all.events) != 0 {
		t.Errorf("failed insert emitted %v", all.names())
	}
}
