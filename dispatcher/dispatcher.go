// Package dispatcher implements the single cooperative event-loop
// abstraction a PoolBase is pinned to: a task queue drained to completion
// before control returns to the caller (the "current iteration" scheduled
// callback, used to avoid reentrancy from within a completion handler), and
// a deferred-delete queue flushed at the top of each iteration so close
// paths never dereference a client that has already been torn down.
//
// A Dispatcher's queues are safe to post to from any goroutine (mirroring
// how the teacher's HealthPoller and ModelSyncer run their own goroutine
// and must still hand work back to the owning loop); draining a queue
// (Tick/Run) must only ever happen on the one goroutine that owns the pool.
package dispatcher

import (
	"context"
	"sync"
	"time"
)

// Dispatcher is a minimal reactor: an inbox of posted callbacks plus a
// deferred-delete list, both flushed by the owning goroutine.
type Dispatcher struct {
	mu       sync.Mutex
	tasks    []func()
	deferred []func()
}

// New creates an empty Dispatcher.
func New() *Dispatcher {
	return &Dispatcher{}
}

// Handle is a schedulable callback created once and triggerable repeatedly,
// matching create_schedulable_callback(fn, arg) -> Handle. Re-triggering a
// handle that is already queued for this iteration is a no-op — it runs at
// most once per drain, the same coalescing the source relies on to avoid
// redundant on_upstream_ready sweeps.
type Handle struct {
	d         *Dispatcher
	fn        func()
	mu        sync.Mutex
	scheduled bool
}

// CreateSchedulableCallback wraps fn in a Handle bound to this dispatcher.
func (d *Dispatcher) CreateSchedulableCallback(fn func()) *Handle {
	return &Handle{d: d, fn: fn}
}

// ScheduleCallbackCurrentIteration enqueues the callback to run before the
// dispatcher returns to the event loop. Safe to call from any goroutine;
// coalesces repeated calls within the same undrained iteration.
func (h *Handle) ScheduleCallbackCurrentIteration() {
	h.mu.Lock()
	if h.scheduled {
		h.mu.Unlock()
		return
	}
	h.scheduled = true
	h.mu.Unlock()

	h.d.post(func() {
		h.mu.Lock()
		h.scheduled = false
		h.mu.Unlock()
		h.fn()
	})
}

func (d *Dispatcher) post(fn func()) {
	d.mu.Lock()
	d.tasks = append(d.tasks, fn)
	d.mu.Unlock()
}

// DeferredDelete enqueues fn (typically a client's release/close cleanup) to
// run at the top of the dispatcher's next iteration rather than inline,
// guaranteeing no close path runs while the caller is still unwinding out of
// a callback invoked on behalf of the object being deleted.
func (d *Dispatcher) DeferredDelete(fn func()) {
	d.mu.Lock()
	d.deferred = append(d.deferred, fn)
	d.mu.Unlock()
}

// ClearDeferredDeleteList runs every pending deferred-delete callback, in
// enqueue order, and empties the list. Called at the top of every Tick, and
// explicitly by pool.Base.DestructAllConnections so no pool-owned resource
// outlives the pool.
func (d *Dispatcher) ClearDeferredDeleteList() {
	d.mu.Lock()
	pending := d.deferred
	d.deferred = nil
	d.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// Tick flushes the deferred-delete list, then drains the task queue to
// completion — including tasks that post further tasks during the drain, so
// a schedule-on-upstream-ready triggered from within another task still
// runs before Tick returns.
func (d *Dispatcher) Tick() {
	d.ClearDeferredDeleteList()

	for {
		d.mu.Lock()
		if len(d.tasks) == 0 {
			d.mu.Unlock()
			return
		}
		task := d.tasks[0]
		d.tasks = d.tasks[1:]
		d.mu.Unlock()

		task()
	}
}

// Run drives Tick on a fixed cadence until ctx is cancelled — the same
// ticker/cancel/done shape as the teacher's HealthPoller.pollLoop, just
// ticking the dispatcher's queues instead of a provider health check. This
// is what the demo wiring in main.go uses; tests call Tick directly for
// deterministic, manually-stepped control instead.
func (d *Dispatcher) Run(ctx context.Context, tickInterval time.Duration) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	d.Tick()
	for {
		select {
		case <-ctx.Done():
			d.Tick()
			return
		case <-ticker.C:
			d.Tick()
		}
	}
}
