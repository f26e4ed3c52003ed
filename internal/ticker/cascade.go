// Package ticker derives 1-minute, 5-minute and 10-minute cadences from a
// single 1-second pulse.
package ticker

import (
	"context"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/metrics"
)

// Rebase is the counter period; it is a multiple of every derived cadence.
const Rebase = 600

// Actions are the per-cadence callbacks. Nil actions are skipped.
type Actions struct {
	Second      func()
	Minute      func()
	FiveMinutes func()
	TenMinutes  func()
	// Tenth and Idle back the optional 10 Hz and idle-poll entry points.
	Tenth func()
	Idle  func()
}

// Cascade owns the granular tick counter. It is driven from a single
// goroutine and is not safe for concurrent Tick calls.
type Cascade struct {
	granular uint32
	act      Actions
}

func New(act Actions) *Cascade { return &Cascade{act: act} }

// Tick is the once-per-second entry point.
func (c *Cascade) Tick() {
	c.granular++
	metrics.IncTick(metrics.CadenceSecond)
	call(c.act.Second)
	if c.granular%60 == 0 {
		metrics.IncTick(metrics.CadenceMinute)
		call(c.act.Minute)
	}
	if c.granular%300 == 0 {
		metrics.IncTick(metrics.CadenceFiveMinutes)
		call(c.act.FiveMinutes)
	}
	if c.granular%Rebase == 0 {
		metrics.IncTick(metrics.CadenceTenMinutes)
		call(c.act.TenMinutes)
		// Subtract rather than zero so a backlog of pending ticks keeps its phase.
		c.granular -= Rebase
	}
}

// Tick10th is the ten-times-per-second entry point.
func (c *Cascade) Tick10th() { call(c.act.Tenth) }

// IdlePoll is called whenever the main loop has nothing else to do.
func (c *Cascade) IdlePoll() { call(c.act.Idle) }

// Granular returns the current counter value.
func (c *Cascade) Granular() uint32 { return c.granular }

// Reset zeroes the counter.
func (c *Cascade) Reset() { c.granular = 0 }

func call(fn func()) {
	if fn != nil {
		fn()
	}
}

// Run invokes tick every interval until ctx is done.
func Run(ctx context.Context, every time.Duration, tick func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			tick()
		case <-ctx.Done():
			return
		}
	}
}
