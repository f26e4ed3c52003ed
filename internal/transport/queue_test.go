package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/can"
)

// TestQueueDeliversInOrder verifies frames reach the consumer in push order.
func TestQueueDeliversInOrder(t *testing.T) {
	var mu sync.Mutex
	var got []uint32
	var after atomic.Int64
	q := NewQueue(context.Background(), 8, func(fr can.Frame) {
		mu.Lock()
		got = append(got, fr.CANID)
		mu.Unlock()
	}, Hooks{OnAfter: func() { after.Add(1) }})
	defer q.Close()
	for i := 0; i < 5; i++ {
		if err := q.Push(can.Frame{CANID: uint32(0x200 + i)}); err != nil {
			t.Fatalf("unexpected push error: %v", err)
		}
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && after.Load() < 5 {
		time.Sleep(5 * time.Millisecond)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != 5 || after.Load() != 5 {
		t.Fatalf("expected 5 delivered, got %d (after=%d)", len(got), after.Load())
	}
	for i, id := range got {
		if id != uint32(0x200+i) {
			t.Fatalf("out of order at %d: 0x%X", i, id)
		}
	}
}

// TestQueueOverflowDrops ensures OnDrop fires when the consumer lags.
func TestQueueOverflowDrops(t *testing.T) {
	release := make(chan struct{})
	var drops atomic.Int64
	q := NewQueue(context.Background(), 1, func(can.Frame) { <-release }, Hooks{OnDrop: func() error { drops.Add(1); return ErrRxOverflow }})
	defer q.Close()
	defer close(release)

	// First frame is taken by the consumer, which then blocks.
	if err := q.Push(can.Frame{}); err != nil {
		t.Fatalf("first push: %v", err)
	}
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) && q.Len() != 0 {
		time.Sleep(time.Millisecond)
	}
	// Second fills the buffer, third must overflow.
	if err := q.Push(can.Frame{}); err != nil {
		t.Fatalf("second push: %v", err)
	}
	if err := q.Push(can.Frame{}); !errors.Is(err, ErrRxOverflow) {
		t.Fatalf("expected overflow, got %v", err)
	}
	if drops.Load() != 1 {
		t.Fatalf("expected 1 drop, got %d", drops.Load())
	}
}

func TestQueueSilentOverflowWithoutHook(t *testing.T) {
	release := make(chan struct{})
	q := NewQueue(context.Background(), 0, func(can.Frame) { <-release }, Hooks{})
	defer q.Close()
	defer close(release)
	for i := 0; i < 3; i++ {
		if err := q.Push(can.Frame{}); err != nil {
			t.Fatalf("push %d: %v", i, err)
		}
	}
}

func TestQueuePushAfterClose(t *testing.T) {
	q := NewQueue(context.Background(), 2, func(can.Frame) {}, Hooks{})
	q.Close()
	if err := q.Push(can.Frame{CANID: 123}); !errors.Is(err, ErrQueueClosed) {
		t.Fatalf("expected ErrQueueClosed, got %v", err)
	}
	q.Close() // idempotent
}

func TestQueueCloseConcurrentPush(t *testing.T) {
	for i := 0; i < 100; i++ {
		q := NewQueue(context.Background(), 1, func(can.Frame) {}, Hooks{})
		done := make(chan error, 1)
		go func() {
			done <- q.Push(can.Frame{})
		}()
		time.Sleep(1 * time.Millisecond)
		q.Close()
		if err := <-done; err != nil && !errors.Is(err, ErrQueueClosed) {
			t.Fatalf("iteration %d: unexpected push error %v", i, err)
		}
	}
}

func TestQueueStopsOnParentCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var n atomic.Int64
	q := NewQueue(ctx, 4, func(can.Frame) { n.Add(1) }, Hooks{})
	cancel()
	q.wg.Wait()
	before := n.Load()
	_ = q.Push(can.Frame{})
	time.Sleep(20 * time.Millisecond)
	if n.Load() != before {
		t.Fatalf("frame delivered after parent cancel")
	}
	q.Close()
}
