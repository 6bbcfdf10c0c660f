// Package resource implements the counted, capped resource primitives that
// bound pending requests, active requests, connections, and connection
// pools per cluster/priority.
package resource

import (
	"sync/atomic"

	"github.com/alfredgw/connpool/invariant"
)

// Limit is a counted, capped counter. It does not synchronize access: callers
// sharing a Limit across goroutines may transiently observe Count() > Max(),
// the same tolerance the upstream resource manager allows. Dec/DecBy never
// drive the counter negative in a release build; in a debug build (see
// invariant.Assert) they panic on underflow, since going negative is always a
// caller bug.
type Limit struct {
	current    int64
	max        int64
	runtimeKey string
}

// NewLimit creates a Limit bounded by max, optionally tagged with a runtime
// key for diagnostics (mirrors the runtime-key-scoped limits the resource
// manager binds its four counters to).
func NewLimit(max uint64, runtimeKey string) *Limit {
	return &Limit{max: int64(max), runtimeKey: runtimeKey}
}

// CanCreate reports whether the counter has headroom to admit one more unit.
func (l *Limit) CanCreate() bool {
	return atomic.LoadInt64(&l.current) < atomic.LoadInt64(&l.max)
}

// Inc increments the counter by one.
func (l *Limit) Inc() {
	atomic.AddInt64(&l.current, 1)
}

// Dec decrements the counter by one.
func (l *Limit) Dec() {
	l.DecBy(1)
}

// DecBy decrements the counter by n. n must not exceed the current count;
// violating this is a programming error and is asserted in debug builds.
func (l *Limit) DecBy(n uint64) {
	invariant.Assert(int64(n) <= atomic.LoadInt64(&l.current), "resource.Limit: DecBy(%d) exceeds current count %d", n, atomic.LoadInt64(&l.current))
	for {
		cur := atomic.LoadInt64(&l.current)
		next := cur - int64(n)
		if next < 0 {
			next = 0
		}
		if atomic.CompareAndSwapInt64(&l.current, cur, next) {
			return
		}
	}
}

// Max returns the configured ceiling.
func (l *Limit) Max() uint64 {
	return uint64(atomic.LoadInt64(&l.max))
}

// SetMax updates the ceiling. Existing counts are left untouched — a lowered
// max simply closes CanCreate() until the count drains below it.
func (l *Limit) SetMax(max uint64) {
	atomic.StoreInt64(&l.max, int64(max))
}

// Count returns the current count.
func (l *Limit) Count() uint64 {
	return uint64(atomic.LoadInt64(&l.current))
}

// RuntimeKey returns the diagnostic key this limit was constructed with.
func (l *Limit) RuntimeKey() string {
	return l.runtimeKey
}
