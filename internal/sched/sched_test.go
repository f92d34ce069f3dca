package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(30*time.Millisecond, func() { runs.Add(1) })

	for i := 0; i < 10; i++ {
		d.Call()
		time.Sleep(2 * time.Millisecond)
	}
	time.Sleep(100 * time.Millisecond)

	if got := runs.Load(); got != 1 {
		t.Errorf("expected burst to coalesce into 1 run, got %d", got)
	}
}

func TestDebouncer_SeparateBurstsRunSeparately(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { runs.Add(1) })

	d.Call()
	time.Sleep(60 * time.Millisecond)
	d.Call()
	time.Sleep(60 * time.Millisecond)

	if got := runs.Load(); got != 2 {
		t.Errorf("expected 2 runs, got %d", got)
	}
}

func TestDebouncer_CancelDropsPending(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func() { runs.Add(1) })

	d.Call()
	d.Cancel()
	time.Sleep(60 * time.Millisecond)

	if got := runs.Load(); got != 0 {
		t.Errorf("expected cancel to drop the pending run, got %d", got)
	}
}

func TestDebouncer_FlushRunsImmediately(t *testing.T) {
	var runs atomic.Int32
	d := NewDebouncer(time.Hour, func() { runs.Add(1) })

	d.Call()
	d.Flush()
	if got := runs.Load(); got != 1 {
		t.Errorf("expected flush to run the pending call, got %d", got)
	}
	// Nothing pending now; flush is a no-op.
	d.Flush()
	if got := runs.Load(); got != 1 {
		t.Errorf("expected idle flush to be a no-op, got %d", got)
	}
}

func TestThrottler_LeadingEdgeImmediate(t *testing.T) {
	var runs atomic.Int32
	tr := NewThrottler(time.Hour, func() { runs.Add(1) })

	tr.Call()
	if got := runs.Load(); got != 1 {
		t.Errorf("expected the first call to run immediately, got %d", got)
	}
	defer tr.Cancel()
}

func TestThrottler_SustainedInputKeepsFiring(t *testing.T) {
	var runs atomic.Int32
	tr := NewThrottler(25*time.Millisecond, func() { runs.Add(1) })
	defer tr.Cancel()

	deadline := time.Now().Add(120 * time.Millisecond)
	for time.Now().Before(deadline) {
		tr.Call()
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	got := runs.Load()
	// 120ms of input at a 25ms interval: leading run plus roughly one per
	// interval. Exact timing varies by scheduler; bound it loosely.
	if got < 3 || got > 8 {
		t.Errorf("expected sustained firing in [3,8] runs, got %d", got)
	}
}

func TestThrottler_TrailingEdgeFires(t *testing.T) {
	var runs atomic.Int32
	tr := NewThrottler(40*time.Millisecond, func() { runs.Add(1) })
	defer tr.Cancel()

	tr.Call() // leading
	tr.Call() // inside interval, schedules trailing
	if got := runs.Load(); got != 1 {
		t.Fatalf("expected only the leading run so far, got %d", got)
	}
	time.Sleep(100 * time.Millisecond)
	if got := runs.Load(); got != 2 {
		t.Errorf("expected the trailing run to fire, got %d", got)
	}
}
