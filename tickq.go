package tickq

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/snehjoshi/tickq/internal/clock"
	"github.com/snehjoshi/tickq/internal/event"
	"github.com/snehjoshi/tickq/internal/metrics"
	"github.com/snehjoshi/tickq/internal/pairheap"
	"github.com/snehjoshi/tickq/internal/registry"
	"github.com/snehjoshi/tickq/internal/sched"
	"github.com/snehjoshi/tickq/internal/stream"
	"github.com/snehjoshi/tickq/internal/types"
)

// ─── Re-exported types ────────────────────────────────────────────────────────

// Handle, Item, Update, and Comparator are the value types shared by every
// layer; they are defined once in internal/types and re-exported here so
// callers never need the internal import path.
type (
	Handle     = types.Handle
	Item       = types.Item
	Update     = types.Update
	Comparator = types.Comparator
)

// Clock, TimerSource, and Timer are the injected platform capabilities.
// clock.System and clock.Timers are re-exported as SystemClock/SystemTimers.
type (
	Clock       = clock.Clock
	TimerSource = clock.Source
	Timer       = clock.Timer
)

// Emitter, Event, Handler, and Subscription form the listener surface.
type (
	Emitter      = event.Emitter
	Event        = event.E
	Handler      = event.Handler
	Subscription = event.Subscription
)

// Event names, re-exported for listener registration.
const (
	EventInsert = event.Insert
	EventPoll   = event.Poll
	EventRemove = event.Remove
	EventUpdate = event.Update
	EventClear  = event.Clear
	EventPeek   = event.Peek
	EventGet    = event.Get
	EventHas    = event.Has
	EventAll    = event.All
)

// ─── Error sentinels ──────────────────────────────────────────────────────────

var (
	// ErrInvalidConfig is returned by New when the options are unusable —
	// a missing clock or timer source, or metrics without the event layer.
	ErrInvalidConfig = errors.New("tickq: invalid configuration")

	// ErrDuplicateID reports an InsertWithID id that is already in use.
	ErrDuplicateID = registry.ErrDuplicateID

	// ErrDuplicatePayload reports a payload that is already stored.
	ErrDuplicatePayload = registry.ErrDuplicatePayload

	// ErrStaleHandle reports a handle whose entry no longer exists.
	ErrStaleHandle = registry.ErrStaleHandle

	// ErrNotFound reports a SetPriority ref that did not resolve.
	ErrNotFound = pairheap.ErrNotFound
)

// SystemClock returns the wall clock (UTC milliseconds).
func SystemClock() Clock { return clock.System() }

// SystemTimers returns a timer source backed by time.AfterFunc.
func SystemTimers() TimerSource { return clock.Timers() }

// NewManualClock returns a deterministic clock+timer source for tests,
// reading start milliseconds until advanced.
func NewManualClock(start int64) *clock.Manual { return clock.NewManual(start) }

// ─── Options ──────────────────────────────────────────────────────────────────

// Options selects which layers to compose and binds the scheduler's platform
// capabilities. The zero value is not usable: a scheduled queue needs a
// Clock and a TimerSource.
type Options struct {
	// Name labels this queue in metrics and logs.
	Name string

	// Clock and Timers are required unless NoScheduler is set.
	Clock  Clock
	Timers TimerSource

	// Comparator orders priorities; nil means numeric ascending. The
	// scheduler always interprets priorities as UTC milliseconds when
	// deciding dueness, regardless of comparator.
	Comparator Comparator

	// Emitter replaces the default event emitter. Optional.
	Emitter *Emitter

	// Metrics, when set, receives a counter increment for every queue
	// operation, fed from the event layer. Requires events.
	Metrics *metrics.Registry

	// Layer selection. Disabling a layer removes its behaviour entirely:
	// no timer, no events, or no ready buffer.
	NoScheduler bool
	NoEvents    bool
	NoStream    bool
}

// ─── Queue ────────────────────────────────────────────────────────────────────

// Queue is the composed scheduled priority queue. All methods are safe for
// concurrent use; Next is the only one that suspends.
type Queue struct {
	mu   sync.Mutex
	top  types.Queue
	heap *pairheap.Heap

	sch *sched.Scheduler // nil when NoScheduler
	ev  *event.Queue     // nil when NoEvents
	st  *stream.Queue    // nil when NoStream
}

// New composes a queue per opts.
func New(opts Options) (*Queue, error) {
	if !opts.NoScheduler && (opts.Clock == nil || opts.Timers == nil) {
		return nil, fmt.Errorf("%w: scheduler requires a clock and a timer source", ErrInvalidConfig)
	}
	if opts.Metrics != nil && opts.NoEvents {
		return nil, fmt.Errorf("%w: metrics are fed from the event layer", ErrInvalidConfig)
	}

	q := &Queue{}
	q.heap = pairheap.New(opts.Comparator)
	q.top = q.heap

	if !opts.NoScheduler {
		s, err := sched.New(q.top, opts.Clock, opts.Timers, &q.mu)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		q.sch = s
		q.top = s
	}

	if !opts.NoEvents {
		em := opts.Emitter
		if em == nil {
			em = event.NewEmitter()
		}
		q.ev = event.Wrap(q.top, em)
		q.top = q.ev
	}

	if !opts.NoStream {
		q.st = stream.Wrap(q.top, &q.mu)
		q.top = q.st
	}

	// The scheduler drains through the OUTERMOST Poll so the event and
	// stream layers observe every dispatched item.
	if q.sch != nil {
		q.sch.Bind(q.top.Poll)
	}

	if opts.Metrics != nil {
		wireMetrics(q.ev.Emitter(), opts.Metrics, opts.Name)
	}
	return q, nil
}

// wireMetrics subscribes an all-events listener that feeds the counters.
func wireMetrics(em *event.Emitter, reg *metrics.Registry, name string) {
	em.On(event.All, func(e event.E) {
		switch e.Name {
		case event.Insert:
			reg.Inserts.Inc(name)
		case event.Poll:
			reg.Polls.Inc(name)
		case event.Remove:
			reg.Removes.Inc(name)
		case event.Update:
			reg.Updates.Inc(name)
		case event.Clear:
			if n, ok := e.Payload.(int); ok {
				reg.Cleared.Add(name, int64(n))
			}
		}
	})
}

// ─── Lifecycle ────────────────────────────────────────────────────────────────

// Start enables scheduled dispatch and arms the timer from the current root.
// No-op when the scheduler layer is disabled.
func (q *Queue) Start() {
	if q.sch == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sch.Start()
}

// Stop disables dispatch and cancels any armed timer. Heap contents and
// buffered items are preserved; pending consumer waits survive and resume
// when dispatch restarts.
func (q *Queue) Stop() {
	if q.sch == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.sch.Stop()
}

// Running reports whether scheduled dispatch is enabled.
func (q *Queue) Running() bool {
	if q.sch == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sch.Running()
}

// ─── Queue operations ─────────────────────────────────────────────────────────

// Insert stores payload at the given priority (UTC milliseconds when the
// scheduler is active) and returns its handle.
func (q *Queue) Insert(priority int64, payload any) (*Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Insert(priority, payload)
}

// InsertWithID is Insert with a caller-supplied unique id.
func (q *Queue) InsertWithID(priority int64, payload any, id string) (*Handle, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.InsertWithID(priority, payload, id)
}

// Peek returns the handle of the minimum-priority item, or nil when empty.
func (q *Queue) Peek() *Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Peek()
}

// Min returns the minimum priority currently stored.
func (q *Queue) Min() (int64, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Min()
}

// Poll removes and returns the minimum-priority item, or nil when empty.
// When the stream layer is active the result is also appended to the ready
// buffer for a consumer to pick up.
func (q *Queue) Poll() *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Poll()
}

// Get resolves ref (id, handle, or payload) to its current handle.
func (q *Queue) Get(ref any) *Handle {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Get(ref)
}

// Has reports whether ref resolves to a stored item.
func (q *Queue) Has(ref any) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Has(ref)
}

// Remove deletes the item ref resolves to and returns it; nil on a miss.
func (q *Queue) Remove(ref any) *Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Remove(ref)
}

// SetPriority changes the priority of the item ref resolves to. See
// types.Queue for the contract; note the priority-increase path issues a
// new handle, carried in the returned Update.
func (q *Queue) SetPriority(ref any, priority int64) (*Update, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.SetPriority(ref, priority)
}

// Clear drops every item and returns how many were dropped. Any armed timer
// is cancelled.
func (q *Queue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Clear()
}

// Size returns the number of stored items.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Size()
}

// Empty reports whether the queue holds no items.
func (q *Queue) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.top.Empty()
}

// ForEach calls fn for every (handle, payload) pair in unspecified order.
// fn runs with the queue mutex held and must not call back into the queue.
func (q *Queue) ForEach(fn func(h *Handle, payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.ForEach(fn)
}

// ─── Events ───────────────────────────────────────────────────────────────────

// On registers fn for the named event. No-op (zero token) when the event
// layer is disabled.
//
// Handlers run synchronously, in registration order, with the queue lock
// held — the event payload carries the committed result, and any queue state
// a handler could query through the layers below is already post-mutation.
// Handlers must not call back into the Queue's public methods.
func (q *Queue) On(name string, fn Handler) Subscription {
	if q.ev == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ev.Emitter().On(name, fn)
}

// Once registers fn for a single delivery of the named event.
func (q *Queue) Once(name string, fn Handler) Subscription {
	if q.ev == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ev.Emitter().Once(name, fn)
}

// Off removes a subscription returned by On or Once.
func (q *Queue) Off(name string, sub Subscription) {
	if q.ev == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.ev.Emitter().Off(name, sub)
}

// ─── Stream ───────────────────────────────────────────────────────────────────

// Next returns the next polled item, suspending until one is available or
// ctx is done. Returns an error when the stream layer is disabled.
func (q *Queue) Next(ctx context.Context) (*Item, error) {
	if q.st == nil {
		return nil, fmt.Errorf("%w: stream layer is disabled", ErrInvalidConfig)
	}
	return q.st.Next(ctx)
}

// Buffered returns the number of polled results awaiting consumer pickup.
func (q *Queue) Buffered() int {
	if q.st == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.st.Buffered()
}

// TimerArmed reports whether the scheduler currently has a timer armed.
// Intended for tests and introspection.
func (q *Queue) TimerArmed() bool {
	if q.sch == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sch.TimerArmed()
}
