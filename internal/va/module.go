// Package va wires capture, decoding, the tick cascade and the low-charge
// monitor into the Volt/Ampera vehicle module.
package va

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/capture"
	"github.com/kstaniek/go-ovms-va/internal/decoder"
	"github.com/kstaniek/go-ovms-va/internal/logging"
	"github.com/kstaniek/go-ovms-va/internal/notify"
	"github.com/kstaniek/go-ovms-va/internal/params"
	"github.com/kstaniek/go-ovms-va/internal/ticker"
	"github.com/kstaniek/go-ovms-va/internal/vehicle"
)

// Params is the read side of the parameter store.
type Params interface {
	Get(key string) (string, error)
	Int(key string, def int) int
}

// Module is the Volt/Ampera vehicle module. FrameReady runs in the capture
// context; Ticker, Ticker10th and IdlePoll run in the mainline. The two
// contexts share only the mutex-guarded vehicle state.
type Module struct {
	acc     capture.Acceptance
	state   *vehicle.State
	ctrl    *capture.Controller
	cascade *ticker.Cascade
	monitor *notify.Monitor
	params  Params
	log     *slog.Logger

	// tickMu serializes mainline entry points; Cascade is single-goroutine.
	tickMu sync.Mutex
}

// New builds the module with the static acceptance configuration. p may be
// nil, in which case every parameter takes its default.
func New(acc capture.Acceptance, p Params, n notify.Notifier) *Module {
	m := &Module{
		acc:    acc,
		state:  vehicle.NewState(),
		params: p,
		log:    logging.L().With("component", "va"),
	}
	m.ctrl = capture.NewController(acc, m.onCaptured)
	m.monitor = notify.NewMonitor(m.minSOC, m.state.SOC, n)
	m.cascade = ticker.New(ticker.Actions{
		Second:      m.state.DecayStale,
		Minute:      m.monitor.Evaluate,
		FiveMinutes: func() { m.log.Debug("tick_five_minutes") },
		TenMinutes:  func() { m.log.Debug("tick_ten_minutes") },
	})
	return m
}

// Initialise sets the module to its power-on state and loads preferences.
func (m *Module) Initialise() {
	m.tickMu.Lock()
	defer m.tickMu.Unlock()
	m.state.Reset()
	m.state.SetUnits(vehicle.Units(m.param(params.KeyUnits, "M")[0]))
	m.cascade.Reset()
	m.monitor.Reset()
	listenOnly := m.param(params.KeyCANWrite, "0") != "1"
	m.log.Info("vehicle_initialised",
		"car_type", vehicle.CarType,
		"units", string(m.state.Units()),
		"min_soc", m.minSOC(),
		"listen_only", listenOnly)
	if !listenOnly {
		m.log.Warn("can_write_ignored", "reason", "module has no transmit path")
	}
}

// FrameReady is the capture-context entry for one received frame.
func (m *Module) FrameReady(fr can.Frame) { m.ctrl.Deliver(fr) }

// Ticker is the 1 Hz mainline entry.
func (m *Module) Ticker() {
	m.tickMu.Lock()
	m.cascade.Tick()
	m.tickMu.Unlock()
}

// Ticker10th is the 10 Hz mainline entry.
func (m *Module) Ticker10th() {
	m.tickMu.Lock()
	m.cascade.Tick10th()
	m.tickMu.Unlock()
}

// IdlePoll is called when the mainline has no pending work.
func (m *Module) IdlePoll() {
	m.tickMu.Lock()
	m.cascade.IdlePoll()
	m.tickMu.Unlock()
}

func (m *Module) State() *vehicle.State { return m.state }

func (m *Module) Acceptance() capture.Acceptance { return m.acc }

// NotifyState reports the low-charge monitor state.
func (m *Module) NotifyState() notify.State { return m.monitor.State() }

func (m *Module) onCaptured(f *capture.CapturedFrame) {
	u := decoder.Decode(f, m.state)
	if !u.Any() {
		return
	}
	if m.log.Enabled(context.Background(), slog.LevelDebug) {
		m.log.Debug("frame_decoded",
			"channel", f.Channel.String(),
			"match", f.Match,
			"soc", m.state.SOC(),
			"vin_complete", m.state.VINComplete())
	}
}

func (m *Module) minSOC() int {
	if m.params == nil {
		return 0
	}
	return m.params.Int(params.KeyMinSOC, 0)
}

func (m *Module) param(key, def string) string {
	if m.params == nil {
		return def
	}
	v, err := m.params.Get(key)
	if err != nil || v == "" {
		return def
	}
	return v
}

// Status is the body served by the status endpoint.
type Status struct {
	Vehicle     vehicle.Snapshot `json:"vehicle"`
	MinSOC      int              `json:"min_soc"`
	NotifyState string           `json:"notify_state"`
}

// Status returns the current module status.
func (m *Module) Status() Status {
	return Status{
		Vehicle:     m.state.Snapshot(),
		MinSOC:      m.minSOC(),
		NotifyState: m.monitor.State().String(),
	}
}

// StatusHandler serves Status as JSON.
func (m *Module) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(m.Status()); err != nil {
			m.log.Warn("status_encode_error", "error", err)
		}
	})
}
