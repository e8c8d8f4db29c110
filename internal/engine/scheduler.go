package engine

import "time"

// Scheduler stands in for the host platform's timer-callback facility
// (spec.md §5: "timer callbacks that start fresh messages"; §9: "a ticking
// Scheduler interface stands in for the host platform's timer callback").
// The station never assumes an in-memory-only timer survives a restart —
// Engine.Reconcile rebuilds the schedule from stable state on cold start.
type Scheduler interface {
	// Schedule arranges for fn to be invoked at or after at. Implementations
	// are free to coalesce or delay; the engine re-derives due work from the
	// RequestExpiration/RequestSortKey indices regardless, so a missed or
	// late callback is corrected on the next reconciliation pass rather than
	// relied upon for correctness.
	Schedule(at time.Time, fn func())
}

// TimeScheduler is a simple in-process Scheduler built on time.AfterFunc,
// the Go-process stand-in for the host platform's timer callback in this
// single-threaded-cooperative model (spec.md §5).
type TimeScheduler struct{}

func (TimeScheduler) Schedule(at time.Time, fn func()) {
	d := time.Until(at)
	if d <= 0 {
		go fn()
		return
	}
	time.AfterFunc(d, fn)
}
