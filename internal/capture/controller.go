// Package capture emulates the two-buffer CAN receive controller: frames are
// classified by acceptance rules into a receive slot, and the service routine
// copies each full slot into a shared staging frame, releases the slot and
// hands the staging frame to a handler.
//
// Load, Service and the handler run under one mutex, which stands in for the
// interrupt context: the rest of the process never observes a half-captured
// frame or a half-applied decode.
package capture

import (
	"sync"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
)

// CapturedFrame is the staging buffer filled by the service routine.
// Only Data[:Len] is valid.
type CapturedFrame struct {
	Channel Channel
	Match   uint8
	Len     uint8
	Data    [can.MaxLen]byte
}

// Payload returns the valid bytes of the staging buffer.
func (f *CapturedFrame) Payload() []byte { return f.Data[:f.Len] }

// Handler consumes a captured frame. It must not retain the pointer.
type Handler func(*CapturedFrame)

// slot is one hardware receive buffer.
type slot struct {
	full  bool
	dlc   uint8
	data  [can.MaxLen]byte
	match uint8
}

// Controller owns both receive slots and the staging frame.
type Controller struct {
	mu      sync.Mutex
	acc     Acceptance
	slots   [2]slot
	staging CapturedFrame
	handler Handler
}

func NewController(acc Acceptance, h Handler) *Controller {
	return &Controller{acc: acc, handler: h}
}

// Deliver loads a frame and runs the service routine. It is the runtime
// entry point for every frame read from a backend.
func (c *Controller) Deliver(fr can.Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.load(fr); ok {
		c.service()
	}
}

// Load places a frame into its channel's slot without servicing it.
// It returns false when no rule matched or the slot was still full
// (the frame is lost in that case).
func (c *Controller) Load(fr can.Frame) (Channel, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(fr)
}

// Service runs the receive service routine: channel A, then channel B.
func (c *Controller) Service() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.service()
}

// Pending reports whether a channel's slot holds an unserviced frame.
func (c *Controller) Pending(ch Channel) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slots[ch].full
}

func (c *Controller) load(fr can.Frame) (Channel, bool) {
	ch, match, ok := c.acc.Classify(fr)
	if !ok {
		metrics.IncUnmatched()
		return 0, false
	}
	s := &c.slots[ch]
	if s.full {
		metrics.IncOverrun(ch.String())
		return ch, false
	}
	s.dlc = fr.Len & 0x0F
	if s.dlc > can.MaxLen {
		s.dlc = can.MaxLen
	}
	s.data = fr.Data
	s.match = match
	s.full = true
	return ch, true
}

func (c *Controller) service() {
	if c.slots[ChannelA].full {
		c.serviceChannel(ChannelA)
	}
	if c.slots[ChannelB].full {
		c.serviceChannel(ChannelB)
	}
}

// serviceChannel reads the whole slot into the staging frame before
// releasing it, then decodes from the staging frame.
func (c *Controller) serviceChannel(ch Channel) {
	s := &c.slots[ch]
	c.staging.Channel = ch
	c.staging.Len = s.dlc
	c.staging.Data = s.data
	c.staging.Match = s.match
	s.full = false
	metrics.IncCaptured(ch.String())
	if c.handler != nil {
		c.handler(&c.staging)
	}
}
