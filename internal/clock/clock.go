// Package clock abstracts the two capabilities the scheduler layer needs
// from its platform: reading the current instant and scheduling a one-shot
// callback after a delay.
//
// Production wiring binds them to the real time package via System and
// Timers; tests bind them to a controllable Manual clock so scheduled drains
// can be driven deterministically.
package clock

import "time"

// Clock reads the current instant as UTC milliseconds since the Unix epoch —
// the same units the scheduler interprets priorities in.
type Clock interface {
	Now() int64
}

// Timer is the token for a scheduled one-shot callback.
type Timer interface {
	// Stop cancels the callback. It reports whether the cancellation took
	// effect before the callback started.
	Stop() bool
}

// Source schedules one-shot callbacks. A non-positive delay schedules the
// callback to run as soon as possible; it still runs asynchronously, never
// inside AfterFunc.
type Source interface {
	AfterFunc(delay time.Duration, fn func()) Timer
}

// ─── System wiring ────────────────────────────────────────────────────────────

type systemClock struct{}

func (systemClock) Now() int64 { return time.Now().UnixMilli() }

// System returns the wall clock.
func System() Clock { return systemClock{} }

type systemTimer struct{ t *time.Timer }

func (s systemTimer) Stop() bool { return s.t.Stop() }

type systemSource struct{}

func (systemSource) AfterFunc(delay time.Duration, fn func()) Timer {
	return systemTimer{t: time.AfterFunc(delay, fn)}
}

// Timers returns a Source backed by time.AfterFunc.
func Timers() Source { return systemSource{} }
