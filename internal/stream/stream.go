// Package stream couples scheduled dispatch to asynchronous consumers.
//
// The decorator intercepts Poll only: every non-nil poll result is appended
// to a FIFO ready buffer, and blocked consumers are resumed one per result.
// N concurrent consumers split the work — each item is delivered to exactly
// one of them, and each consumer sees its own items in strict poll order.
//
// Waits are token-based: every Next call that has to block registers a fresh
// capacity-1 channel, so a cancelled consumer releases its wait without
// leaking the resume hook, and an item that raced into a dead wait is
// re-fronted rather than lost.
package stream

import (
	"container/list"
	"context"
	"sync"

	"github.com/snehjoshi/tickq/internal/types"
)

// Queue is the poll-intercepting decorator.
type Queue struct {
	inner types.Queue

	// mu is the queue instance's mutex, owned by the facade and shared
	// with the scheduler. Decorated operations are entered with it held;
	// Next acquires it itself and releases it across the suspension.
	mu *sync.Mutex

	ready   *list.List // *types.Item, FIFO in poll order
	waiters *list.List // chan *types.Item, capacity 1, FIFO
}

// Wrap decorates inner, sharing the owning queue's mutex.
func Wrap(inner types.Queue, mu *sync.Mutex) *Queue {
	return &Queue{
		inner:   inner,
		mu:      mu,
		ready:   list.New(),
		waiters: list.New(),
	}
}

var _ types.Queue = (*Queue)(nil)

// Poll removes the minimum item and hands it to the stream: directly to the
// longest-blocked consumer when one is waiting, otherwise onto the ready
// buffer. Called with the queue mutex held.
func (q *Queue) Poll() *types.Item {
	it := q.inner.Poll()
	if it != nil {
		q.deliver(it)
	}
	return it
}

func (q *Queue) deliver(it *types.Item) {
	if e := q.waiters.Front(); e != nil {
		q.waiters.Remove(e)
		e.Value.(chan *types.Item) <- it // capacity 1, never blocks
		return
	}
	q.ready.PushBack(it)
}

// Next returns the next polled item. If the ready buffer is non-empty it
// shifts one entry immediately; otherwise it suspends until the next
// successful poll or until ctx is done.
//
// Next must be called WITHOUT the queue mutex held — it is the stack's only
// suspension point.
func (q *Queue) Next(ctx context.Context) (*types.Item, error) {
	q.mu.Lock()
	if e := q.ready.Front(); e != nil {
		q.ready.Remove(e)
		q.mu.Unlock()
		return e.Value.(*types.Item), nil
	}

	ch := make(chan *types.Item, 1)
	elem := q.waiters.PushBack(ch)
	q.mu.Unlock()

	select {
	case it := <-ch:
		return it, nil
	case <-ctx.Done():
		q.mu.Lock()
		q.waiters.Remove(elem) // no-op if deliver already popped it
		// An item may have been handed to ch between Done and the lock;
		// put it back at the FRONT so poll order is preserved.
		select {
		case it := <-ch:
			q.ready.PushFront(it)
		default:
		}
		q.mu.Unlock()
		return nil, ctx.Err()
	}
}

// Buffered returns the number of polled results awaiting consumer pickup.
// Called with the queue mutex held.
func (q *Queue) Buffered() int { return q.ready.Len() }

// Waiting returns the number of blocked consumers. Called with the queue
// mutex held.
func (q *Queue) Waiting() int { return q.waiters.Len() }

// ─── Pass-through operations ──────────────────────────────────────────────────

func (q *Queue) Insert(priority int64, payload any) (*types.Handle, error) {
	return q.inner.Insert(priority, payload)
}

func (q *Queue) InsertWithID(priority int64, payload any, id string) (*types.Handle, error) {
	return q.inner.InsertWithID(priority, payload, id)
}

func (q *Queue) Peek() *types.Handle { return q.inner.Peek() }

func (q *Queue) Min() (int64, bool) { return q.inner.Min() }

func (q *Queue) Get(ref any) *types.Handle { return q.inner.Get(ref) }

func (q *Queue) Has(ref any) bool { return q.inner.Has(ref) }

func (q *Queue) Remove(ref any) *types.Item { return q.inner.Remove(ref) }

func (q *Queue) SetPriority(ref any, priority int64) (*types.Update, error) {
	return q.inner.SetPriority(ref, priority)
}

func (q *Queue) Clear() int { return q.inner.Clear() }

func (q *Queue) Size() int { return q.inner.Size() }

func (q *Queue) Empty() bool { return q.inner.Empty() }
