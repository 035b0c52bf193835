// Package tickq is an in-process scheduled priority queue.
//
// At the bottom sits an addressable pairing heap: every stored payload gets
// an immutable registry handle, priorities can be changed cheaply, and any
// item can be removed by id, by handle, or by payload identity. Above it, a
// deadline-driven scheduler converts "items due by now" into an ordered
// stream consumable by asynchronous workers, while a mutation event layer
// reports every committed operation.
//
// Composition is bottom-up; each layer decorates the one below:
//
//	Consumers ──▶ Stream ──▶ Events ──▶ Scheduler ──▶ Heap ──▶ Registry
//
// A minimal scheduled queue bound to the system clock:
//
//	q, err := tickq.New(tickq.Options{
//		Name:   "jobs",
//		Clock:  tickq.SystemClock(),
//		Timers: tickq.SystemTimers(),
//	})
//	if err != nil { ... }
//	defer q.Stop()
//
//	q.Insert(time.Now().Add(time.Minute).UnixMilli(), "reindex")
//	q.Start()
//
//	for {
//		it, err := q.Next(ctx) // blocks until an item comes due
//		if err != nil {
//			break
//		}
//		handle(it.Payload)
//	}
//
// All public operations on a Queue are safe for concurrent use; they are
// serialised under one mutex per instance. Next is the only operation that
// suspends.
package tickq
