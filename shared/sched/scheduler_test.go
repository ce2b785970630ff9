package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoopContinuationRunsOnPrimaryAfterWork(t *testing.T) {
	loop := NewLoop(2, 16)
	loop.Start()
	defer loop.Stop()

	var order []string
	done := make(chan struct{})
	loop.RunOnWorkerThenPrimary(func() {
		time.Sleep(10 * time.Millisecond)
	}, func() {
		order = append(order, "then")
		close(done)
	})
	loop.RunOnPrimary(func() { order = append(order, "primary") })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("continuation never ran")
	}

	var got []string
	if err := Await(context.Background(), loop, func() { got = append(got, order...) }); err != nil {
		t.Fatalf("Await: %v", err)
	}
	if len(got) != 2 || got[0] != "primary" || got[1] != "then" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestLoopPeriodicStops(t *testing.T) {
	loop := NewLoop(1, 16)
	loop.Start()
	defer loop.Stop()

	var ticks atomic.Int32
	stop := loop.RunPeriodically(5*time.Millisecond, func() { ticks.Add(1) })
	deadline := time.Now().Add(2 * time.Second)
	for ticks.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	stop()
	if ticks.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks.Load())
	}
}

func TestLoopStopDrainsQueuedContinuations(t *testing.T) {
	loop := NewLoop(1, 16)
	loop.Start()

	var ran atomic.Bool
	loop.RunOnWorkerThenPrimary(func() {}, func() { ran.Store(true) })
	loop.Stop()

	if !ran.Load() {
		t.Fatal("continuation queued before Stop was dropped")
	}
}

func TestAwaitHonoursContext(t *testing.T) {
	m := NewManual()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := Await(ctx, m, func() {}); err == nil {
		t.Fatal("expected context error when nothing drains the primary queue")
	}
}

func TestAwaitAfterStop(t *testing.T) {
	loop := NewLoop(1, 4)
	loop.Start()
	loop.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := Await(ctx, loop, func() {}); !errors.Is(err, ErrStopped) {
		t.Fatalf("Await after Stop = %v, want ErrStopped", err)
	}
}

func TestManualDrainOrder(t *testing.T) {
	m := NewManual()
	var log []string
	m.RunOnWorkerThenPrimary(func() { log = append(log, "work") }, func() { log = append(log, "then") })
	m.RunOnPrimary(func() { log = append(log, "first") })

	if w, p := m.Pending(); w != 1 || p != 1 {
		t.Fatalf("pending = %d/%d, want 1/1", w, p)
	}
	m.Drain()
	want := []string{"work", "first", "then"}
	for i := range want {
		if log[i] != want[i] {
			t.Fatalf("order = %v, want %v", log, want)
		}
	}
}
