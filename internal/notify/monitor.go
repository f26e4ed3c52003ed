// Package notify implements the low-charge notification state machine.
package notify

import (
	"sync"

	"github.com/kstaniek/go-ovms-va/internal/logging"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
)

// Kind is a notification category understood by the notification subsystem.
type Kind string

// KindLowCharge asks for a status notification after SOC fell below the
// configured minimum.
const KindLowCharge Kind = "stat"

// Hysteresis is how many percentage points above the threshold SOC must
// climb before the monitor re-arms.
const Hysteresis = 2

// Notifier is the fire-and-forget notification sink.
type Notifier interface {
	Notify(Kind)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Kind)

func (f NotifierFunc) Notify(k Kind) { f(k) }

// State of the monitor.
type State uint8

const (
	Armed State = iota
	Notified
)

func (s State) String() string {
	if s == Notified {
		return "notified"
	}
	return "armed"
}

// Monitor evaluates SOC against a threshold once per minute tick and emits
// at most one low-charge request per excursion below the threshold.
type Monitor struct {
	mu        sync.Mutex
	state     State
	threshold func() int
	soc       func() int
	n         Notifier
}

// NewMonitor builds an armed monitor. threshold and soc are read on every
// Evaluate.
func NewMonitor(threshold, soc func() int, n Notifier) *Monitor {
	return &Monitor{threshold: threshold, soc: soc, n: n}
}

// Evaluate runs one step of the state machine.
func (m *Monitor) Evaluate() {
	minSOC := m.threshold()
	soc := m.soc()
	m.mu.Lock()
	fire := false
	switch {
	case m.state == Armed && soc < minSOC:
		m.state = Notified
		fire = true
	case m.state == Notified && soc > minSOC+Hysteresis:
		m.state = Armed
		logging.L().Info("soc_monitor_rearmed", "soc", soc, "min_soc", minSOC)
	}
	m.mu.Unlock()
	if fire {
		logging.L().Info("soc_low_notified", "soc", soc, "min_soc", minSOC)
		metrics.IncNotification(string(KindLowCharge))
		if m.n != nil {
			m.n.Notify(KindLowCharge)
		}
	}
}

// State returns the current state.
func (m *Monitor) State() State { m.mu.Lock(); defer m.mu.Unlock(); return m.state }

// Reset re-arms the monitor.
func (m *Monitor) Reset() { m.mu.Lock(); m.state = Armed; m.mu.Unlock() }
