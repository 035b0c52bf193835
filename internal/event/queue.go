package event

import "github.com/snehjoshi/tickq/internal/types"

// Queue is the mutation-observing decorator. After each underlying operation
// returns, it emits the operation's event when the result is non-nil (or, for
// Has, true; for Clear, non-zero) — so a listener observing queue state inside
// a handler always sees the post-operation state.
type Queue struct {
	inner types.Queue
	em    *Emitter
}

// Wrap decorates inner with event emission through em.
func Wrap(inner types.Queue, em *Emitter) *Queue {
	return &Queue{inner: inner, em: em}
}

var _ types.Queue = (*Queue)(nil)

// Emitter returns the emitter listeners register with.
func (q *Queue) Emitter() *Emitter { return q.em }

func (q *Queue) Insert(priority int64, payload any) (*types.Handle, error) {
	h, err := q.inner.Insert(priority, payload)
	if err != nil {
		return nil, err
	}
	q.em.Emit(Insert, h)
	return h, nil
}

func (q *Queue) InsertWithID(priority int64, payload any, id string) (*types.Handle, error) {
	h, err := q.inner.InsertWithID(priority, payload, id)
	if err != nil {
		return nil, err
	}
	q.em.Emit(Insert, h)
	return h, nil
}

func (q *Queue) Peek() *types.Handle {
	h := q.inner.Peek()
	if h != nil {
		q.em.Emit(Peek, h)
	}
	return h
}

func (q *Queue) Poll() *types.Item {
	it := q.inner.Poll()
	if it != nil {
		q.em.Emit(Poll, it)
	}
	return it
}

func (q *Queue) Get(ref any) *types.Handle {
	h := q.inner.Get(ref)
	if h != nil {
		q.em.Emit(Get, h)
	}
	return h
}

func (q *Queue) Has(ref any) bool {
	ok := q.inner.Has(ref)
	if ok {
		q.em.Emit(Has, true)
	}
	return ok
}

func (q *Queue) Remove(ref any) *types.Item {
	it := q.inner.Remove(ref)
	if it != nil {
		q.em.Emit(Remove, it)
	}
	return it
}

func (q *Queue) SetPriority(ref any, priority int64) (*types.Update, error) {
	up, err := q.inner.SetPriority(ref, priority)
	if err != nil {
		return nil, err
	}
	if up != nil {
		q.em.Emit(Update, up)
	}
	return up, nil
}

func (q *Queue) Clear() int {
	n := q.inner.Clear()
	if n > 0 {
		q.em.Emit(Clear, n)
	}
	return n
}

func (q *Queue) Min() (int64, bool) { return q.inner.Min() }

func (q *Queue) Size() int { return q.inner.Size() }

func (q *Queue) Empty() bool { return q.inner.Empty() }
