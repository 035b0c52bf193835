// Package sched wraps the heap with a single-timer dispatch discipline.
//
// Priorities are interpreted as UTC milliseconds; an item is due when its
// priority is at or before the clock reading. The scheduler keeps exactly
// one one-shot timer armed, keyed on the current root's deadline:
//
//   - every mutation re-evaluates the next firing deadline exactly once;
//   - a firing drains ALL due items, in strict heap order, through the
//     outermost Poll so the event and stream layers observe each dispatch;
//   - O(1) armed timers regardless of queue size.
//
// The scheduler makes no claim about firing earlier than the underlying
// timer source's resolution: if the source fires late, multiple items are
// simply due in one drain.
package sched

import (
	"errors"
	"sync"
	"time"

	"github.com/snehjoshi/tickq/internal/clock"
	"github.com/snehjoshi/tickq/internal/types"
)

// ErrInvalidConfig is returned by New when the clock or timer source is
// missing.
var ErrInvalidConfig = errors.New("sched: clock and timer source are required")

// Scheduler decorates an inner queue with deadline-driven dispatch.
//
// Invariant: a timer is armed iff running && !Empty(), and it is armed for
// the current root's deadline.
type Scheduler struct {
	inner types.Queue
	clk   clock.Clock
	src   clock.Source

	// mu is the queue instance's mutex, owned by the facade. Timer
	// callbacks run on the source's delivery goroutine and must serialise
	// with user-initiated mutations, so they acquire the same mutex.
	mu *sync.Mutex

	// dispatch is the outermost Poll, bound after the decorator stack is
	// composed. Draining through it means every dispatched item flows
	// through the event and stream layers above this one.
	dispatch func() *types.Item

	running bool
	timer   clock.Timer

	// gen identifies the currently armed timer. A firing whose generation
	// no longer matches belongs to a superseded timer and is ignored; this
	// closes the race where a timer fires between Stop and the callback.
	gen uint64
}

// New builds the scheduler decorator around inner.
// The mutex is shared with the owning queue; callbacks lock it before
// touching any layer.
func New(inner types.Queue, clk clock.Clock, src clock.Source, mu *sync.Mutex) (*Scheduler, error) {
	if clk == nil || src == nil {
		return nil, ErrInvalidConfig
	}
	s := &Scheduler{inner: inner, clk: clk, src: src, mu: mu}
	s.dispatch = s.Poll
	return s, nil
}

var _ types.Queue = (*Scheduler)(nil)

// Bind points the drain loop at the outermost Poll of the composed stack.
// Must be called before Start when event or stream layers wrap this one.
func (s *Scheduler) Bind(dispatch func() *types.Item) {
	if dispatch != nil {
		s.dispatch = dispatch
	}
}

// ─── Lifecycle ────────────────────────────────────────────────────────────────

// Start enables dispatch and arms the timer from the current root.
// Caller must hold the queue mutex.
func (s *Scheduler) Start() {
	s.running = true
	s.resetTimer()
}

// Stop disables dispatch and cancels any armed timer. Heap contents and
// buffered items are preserved; Start resumes where Stop left off.
// Caller must hold the queue mutex.
func (s *Scheduler) Stop() {
	s.running = false
	s.disarm()
}

// Running reports whether dispatch is enabled.
func (s *Scheduler) Running() bool { return s.running }

// TimerArmed reports whether a one-shot timer is currently armed.
func (s *Scheduler) TimerArmed() bool { return s.timer != nil }

// ─── Timer state machine ──────────────────────────────────────────────────────

// disarm cancels the armed timer, if any. Every path that discards a timer
// token goes through here so the source always sees a matching Stop.
func (s *Scheduler) disarm() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// resetTimer re-evaluates the firing deadline: cancel whatever is armed,
// then arm from the current root if running and non-empty.
func (s *Scheduler) resetTimer() {
	s.disarm()

	if !s.running {
		return
	}
	next, ok := s.inner.Min()
	if !ok {
		return
	}

	delay := next - s.clk.Now() // may be <= 0: fire as soon as possible
	gen := s.gen
	s.timer = s.src.AfterFunc(time.Duration(delay)*time.Millisecond, func() {
		s.onFire(gen)
	})
}

// onFire runs on the timer source's delivery goroutine.
func (s *Scheduler) onFire(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.gen || !s.running {
		// A superseded timer, or Stop raced the firing.
		return
	}
	s.timer = nil
	s.drain()
}

// drain polls every due item in strict heap order, then re-arms.
// The inner Poll triggered through dispatch calls back into this layer's
// Poll, whose resetTimer keeps the armed-timer invariant during the loop;
// the generation counter makes the transient arms harmless.
func (s *Scheduler) drain() {
	now := s.clk.Now()
	for {
		next, ok := s.inner.Min()
		if !ok || next > now {
			break
		}
		if s.dispatch() == nil {
			break
		}
	}
	s.resetTimer()
}

// ─── Decorated operations ─────────────────────────────────────────────────────

// Every mutating operation is followed by resetTimer, so any change to the
// root re-keys the single timer.

func (s *Scheduler) Insert(priority int64, payload any) (*types.Handle, error) {
	h, err := s.inner.Insert(priority, payload)
	if err != nil {
		return nil, err
	}
	s.resetTimer()
	return h, nil
}

func (s *Scheduler) InsertWithID(priority int64, payload any, id string) (*types.Handle, error) {
	h, err := s.inner.InsertWithID(priority, payload, id)
	if err != nil {
		return nil, err
	}
	s.resetTimer()
	return h, nil
}

func (s *Scheduler) Poll() *types.Item {
	it := s.inner.Poll()
	s.resetTimer()
	return it
}

func (s *Scheduler) Remove(ref any) *types.Item {
	it := s.inner.Remove(ref)
	if it != nil {
		s.resetTimer()
	}
	return it
}

func (s *Scheduler) SetPriority(ref any, priority int64) (*types.Update, error) {
	up, err := s.inner.SetPriority(ref, priority)
	if err != nil {
		return nil, err
	}
	if up != nil {
		s.resetTimer()
	}
	return up, nil
}

func (s *Scheduler) Clear() int {
	n := s.inner.Clear()
	s.resetTimer()
	return n
}

func (s *Scheduler) Peek() *types.Handle { return s.inner.Peek() }

func (s *Scheduler) Min() (int64, bool) { return s.inner.Min() }

func (s *Scheduler) Get(ref any) *types.Handle { return s.inner.Get(ref) }

func (s *Scheduler) Has(ref any) bool { return s.inner.Has(ref) }

func (s *Scheduler) Size() int { return s.inner.Size() }

func (s *Scheduler) Empty() bool { return s.inner.Empty() }
