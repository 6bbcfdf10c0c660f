package dispatcher

import "testing"

func TestScheduleCallbackRunsOnTick(t *testing.T) {
	d := New()
	ran := false
	h := d.CreateSchedulableCallback(func() { ran = true })
	h.ScheduleCallbackCurrentIteration()

	if ran {
		t.Fatalf("callback ran before Tick")
	}
	d.Tick()
	if !ran {
		t.Fatalf("callback did not run after Tick")
	}
}

func TestScheduleCallbackCoalesces(t *testing.T) {
	d := New()
	count := 0
	h := d.CreateSchedulableCallback(func() { count++ })
	h.ScheduleCallbackCurrentIteration()
	h.ScheduleCallbackCurrentIteration()
	h.ScheduleCallbackCurrentIteration()

	d.Tick()
	if count != 1 {
		t.Fatalf("expected callback to run once, ran %d times", count)
	}
}

func TestScheduleCallbackReschedulableAfterRun(t *testing.T) {
	d := New()
	count := 0
	h := d.CreateSchedulableCallback(func() { count++ })
	h.ScheduleCallbackCurrentIteration()
	d.Tick()
	h.ScheduleCallbackCurrentIteration()
	d.Tick()
	if count != 2 {
		t.Fatalf("expected callback to run twice across two ticks, ran %d times", count)
	}
}

func TestDeferredDeleteRunsOnNextTick(t *testing.T) {
	d := New()
	deleted := false
	d.DeferredDelete(func() { deleted = true })
	if deleted {
		t.Fatalf("deferred delete ran synchronously")
	}
	d.Tick()
	if !deleted {
		t.Fatalf("deferred delete did not run on Tick")
	}
}

func TestTaskPostedDuringDrainRunsSameTick(t *testing.T) {
	d := New()
	var order []int
	h2 := d.CreateSchedulableCallback(func() { order = append(order, 2) })
	h1 := d.CreateSchedulableCallback(func() {
		order = append(order, 1)
		h2.ScheduleCallbackCurrentIteration()
	})
	h1.ScheduleCallbackCurrentIteration()
	d.Tick()

	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Fatalf("expected [1 2], got %v", order)
	}
}
