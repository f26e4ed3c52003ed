package transport

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-ovms-va/internal/can"
)

// Queue hands frames from RX backends to a single consumer goroutine.
// The consumer is the capture context: every frame is delivered there, one
// at a time, so capture and decode never run concurrently with each other.
//
// Push never blocks. When the buffer is full the frame is dropped and the
// OnDrop hook decides what error, if any, the producer sees. Losing frames
// under burst is the accepted capture policy: the bus has no flow control.
//
//	q := NewQueue(ctx, buf, deliver, hooks)
//	q.Push(frame)
//	q.Close()
type Queue struct {
	mu      sync.Mutex
	ch      chan can.Frame
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	deliver func(can.Frame)
	hooks   Hooks
	closed  atomic.Bool
}

// Hooks customize Queue behavior.
type Hooks struct {
	// OnAfter is called after each delivered frame.
	OnAfter func()
	// OnDrop is called when the buffer is full; its returned error is returned
	// from Push. If nil, the overflow is silent.
	OnDrop func() error
}

var (
	// ErrQueueClosed is returned by Push after Close.
	ErrQueueClosed = errors.New("capture queue closed")
	// ErrRxOverflow is the conventional OnDrop result.
	ErrRxOverflow = errors.New("capture queue overflow")
)

// NewQueue starts the consumer goroutine with a buffer of buf frames.
func NewQueue(parent context.Context, buf int, deliver func(can.Frame), hooks Hooks) *Queue {
	ctx, cancel := context.WithCancel(parent)
	q := &Queue{
		ch:      make(chan can.Frame, buf),
		ctx:     ctx,
		cancel:  cancel,
		deliver: deliver,
		hooks:   hooks,
	}
	q.wg.Add(1)
	go q.loop()
	return q
}

func (q *Queue) loop() {
	defer q.wg.Done()
	for {
		select {
		case fr, ok := <-q.ch:
			if !ok {
				return
			}
			q.deliver(fr)
			if q.hooks.OnAfter != nil {
				q.hooks.OnAfter()
			}
		case <-q.ctx.Done():
			return
		}
	}
}

// Push enqueues a frame for the consumer or reports the drop.
func (q *Queue) Push(fr can.Frame) error {
	if q.closed.Load() {
		return ErrQueueClosed
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed.Load() {
		return ErrQueueClosed
	}
	select {
	case q.ch <- fr:
		return nil
	default:
		if q.hooks.OnDrop != nil {
			return q.hooks.OnDrop()
		}
		return nil
	}
}

// Len returns the number of frames waiting for the consumer.
func (q *Queue) Len() int { return len(q.ch) }

// Close stops the consumer and waits for it to exit. Frames still queued
// are discarded.
func (q *Queue) Close() {
	if q.closed.Swap(true) {
		return
	}
	q.cancel()
	q.mu.Lock()
	close(q.ch)
	q.mu.Unlock()
	q.wg.Wait()
}
