package ticker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type counts struct{ sec, min, five, ten int }

func counting(c *counts) Actions {
	return Actions{
		Second:      func() { c.sec++ },
		Minute:      func() { c.min++ },
		FiveMinutes: func() { c.five++ },
		TenMinutes:  func() { c.ten++ },
	}
}

func TestMinuteFiresOnSixtiethTick(t *testing.T) {
	var n counts
	c := New(counting(&n))
	for i := 1; i <= 60; i++ {
		c.Tick()
		if i < 60 && n.min != 0 {
			t.Fatalf("minute fired early at tick %d", i)
		}
	}
	if n.min != 1 || n.sec != 60 {
		t.Fatalf("after 60 ticks: %+v", n)
	}
}

func TestTenMinuteCycle(t *testing.T) {
	var n counts
	c := New(counting(&n))
	for i := 0; i < 600; i++ {
		c.Tick()
	}
	if n.sec != 600 || n.min != 10 || n.five != 2 || n.ten != 1 {
		t.Fatalf("after 600 ticks: %+v", n)
	}
	if c.Granular() != 0 {
		t.Fatalf("granular=%d want 0", c.Granular())
	}
}

func TestRebaseKeepsPhaseAcrossCycles(t *testing.T) {
	var n counts
	c := New(counting(&n))
	for i := 0; i < 1830; i++ {
		c.Tick()
	}
	// 1830 s = 30 min 30 s
	if n.min != 30 || n.five != 6 || n.ten != 3 {
		t.Fatalf("after 1830 ticks: %+v", n)
	}
	if c.Granular() != 30 {
		t.Fatalf("granular=%d want 30", c.Granular())
	}
}

func TestNilActionsAndExtensionPoints(t *testing.T) {
	c := New(Actions{})
	for i := 0; i < 600; i++ {
		c.Tick()
	}
	c.Tick10th()
	c.IdlePoll()

	var tenth, idle int
	c = New(Actions{Tenth: func() { tenth++ }, Idle: func() { idle++ }})
	c.Tick10th()
	c.Tick10th()
	c.IdlePoll()
	if tenth != 2 || idle != 1 {
		t.Fatalf("tenth=%d idle=%d", tenth, idle)
	}
}

func TestReset(t *testing.T) {
	c := New(Actions{})
	for i := 0; i < 42; i++ {
		c.Tick()
	}
	c.Reset()
	if c.Granular() != 0 {
		t.Fatalf("granular=%d after reset", c.Granular())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var ticks atomic.Int64
	done := make(chan struct{})
	go func() {
		Run(ctx, 2*time.Millisecond, func() { ticks.Add(1) })
		close(done)
	}()
	deadline := time.Now().Add(500 * time.Millisecond)
	for time.Now().Before(deadline) && ticks.Load() < 3 {
		time.Sleep(2 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	if ticks.Load() < 3 {
		t.Fatalf("expected at least 3 ticks, got %d", ticks.Load())
	}
}
