package clock

import (
	"testing"
	"time"
)

func TestFakeFiresInDeadlineOrder(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	var order []string
	f.AfterFunc(3*time.Second, func() { order = append(order, "c") })
	f.AfterFunc(1*time.Second, func() { order = append(order, "a") })
	f.AfterFunc(2*time.Second, func() { order = append(order, "b") })

	f.Advance(2 * time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "b" {
		t.Fatalf("unexpected order after 2s: %v", order)
	}

	f.Advance(time.Second)
	if len(order) != 3 || order[2] != "c" {
		t.Fatalf("unexpected order after 3s: %v", order)
	}
	if f.Pending() != 0 {
		t.Errorf("expected no pending timers, got %d", f.Pending())
	}
}

func TestFakeStop(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	fired := false
	timer := f.AfterFunc(time.Second, func() { fired = true })
	if !timer.Stop() {
		t.Fatal("Stop on armed timer should report true")
	}
	if timer.Stop() {
		t.Error("second Stop should report false")
	}

	f.Advance(2 * time.Second)
	if fired {
		t.Error("stopped timer fired")
	}
}

func TestFakeStopAfterFire(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	timer := f.AfterFunc(time.Second, func() {})
	f.Advance(time.Second)
	if timer.Stop() {
		t.Error("Stop after fire should report false")
	}
}

func TestFakeRearmDuringAdvance(t *testing.T) {
	f := NewFake(time.Unix(0, 0))

	count := 0
	var tick func()
	tick = func() {
		count++
		f.AfterFunc(time.Second, tick)
	}
	f.AfterFunc(time.Second, tick)

	f.Advance(5 * time.Second)
	if count != 5 {
		t.Fatalf("expected 5 ticks, got %d", count)
	}
	if got := f.Now(); !got.Equal(time.Unix(5, 0)) {
		t.Errorf("unexpected now %v", got)
	}
}
