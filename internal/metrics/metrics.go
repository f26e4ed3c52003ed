package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-ovms-va/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors
var (
	RxFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rx_frames_total",
		Help: "Total CAN frames received per backend.",
	}, []string{"backend"})
	RxQueueDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rx_queue_dropped_frames_total",
		Help: "Frames dropped because the capture queue was full.",
	})
	UnmatchedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "acceptance_rejected_frames_total",
		Help: "Frames not matched by any acceptance rule.",
	})
	RxOverruns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rx_slot_overruns_total",
		Help: "Frames lost because the receive slot was still full.",
	}, []string{"channel"})
	CapturedFrames = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "captured_frames_total",
		Help: "Frames captured from a receive slot, per channel.",
	}, []string{"channel"})
	DecodedUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "decoded_updates_total",
		Help: "Vehicle state fields updated by the frame decoder.",
	}, []string{"field"})
	IgnoredFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "decoder_ignored_frames_total",
		Help: "Captured frames with no decode effect (unknown match or short payload).",
	})
	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticker_edges_total",
		Help: "Ticker cascade edges fired, per cadence.",
	}, []string{"cadence"})
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_requested_total",
		Help: "Notification requests emitted, per kind.",
	}, []string{"kind"})
	StateOfCharge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vehicle_soc_percent",
		Help: "Last decoded state of charge.",
	})
	MQTTPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_published_total",
		Help: "Messages published to the MQTT broker.",
	})
	MQTTCommands = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mqtt_commands_total",
		Help: "Vehicle commands received over MQTT.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	MalformedFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "malformed_frames_total",
		Help: "Total rejected malformed frames (protocol violations, invalid length, truncated).",
	})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Backend label values.
const (
	BackendSocketCAN  = "socketcan"
	BackendSerial     = "serial"
	BackendCannelloni = "cannelloni"
)

// Cadence label values.
const (
	CadenceSecond      = "1s"
	CadenceMinute      = "1m"
	CadenceFiveMinutes = "5m"
	CadenceTenMinutes  = "10m"
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrSerialRead    = "serial_read"
	ErrSocketCANRead = "socketcan_read"
	ErrCNLRead       = "cnl_read"
	ErrCNLDial       = "cnl_dial"
	ErrHandshake     = "handshake"
	ErrMQTTPublish   = "mqtt_publish"
	ErrMQTTCommand   = "mqtt_command"
	ErrParams        = "params"
)

// StartHTTP serves Prometheus metrics at /metrics and readiness at /ready.
// A non-nil status handler is mounted at /status.
func StartHTTP(addr string, status http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})
	if status != nil {
		mux.Handle("/status", status)
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localRx            uint64
	localQueueDrop     uint64
	localUnmatched     uint64
	localOverruns      uint64
	localCaptured      uint64
	localDecoded       uint64
	localIgnored       uint64
	localTicks         uint64
	localNotifications uint64
	localSOC           uint64
	localPublished     uint64
	localCommands      uint64
	localErrors        uint64
	localMalformed     uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	Rx            uint64
	QueueDrops    uint64
	Unmatched     uint64
	Overruns      uint64
	Captured      uint64
	Decoded       uint64
	Ignored       uint64
	Ticks         uint64
	Notifications uint64
	SOC           uint64
	Published     uint64
	Commands      uint64
	Errors        uint64 // sum across error labels
	Malformed     uint64
}

func Snap() Snapshot {
	return Snapshot{
		Rx:            atomic.LoadUint64(&localRx),
		QueueDrops:    atomic.LoadUint64(&localQueueDrop),
		Unmatched:     atomic.LoadUint64(&localUnmatched),
		Overruns:      atomic.LoadUint64(&localOverruns),
		Captured:      atomic.LoadUint64(&localCaptured),
		Decoded:       atomic.LoadUint64(&localDecoded),
		Ignored:       atomic.LoadUint64(&localIgnored),
		Ticks:         atomic.LoadUint64(&localTicks),
		Notifications: atomic.LoadUint64(&localNotifications),
		SOC:           atomic.LoadUint64(&localSOC),
		Published:     atomic.LoadUint64(&localPublished),
		Commands:      atomic.LoadUint64(&localCommands),
		Errors:        atomic.LoadUint64(&localErrors),
		Malformed:     atomic.LoadUint64(&localMalformed),
	}
}

// IncRx counts one frame read by the given backend.
func IncRx(backend string) {
	RxFrames.WithLabelValues(backend).Inc()
	atomic.AddUint64(&localRx, 1)
}

func IncQueueDrop() {
	RxQueueDropped.Inc()
	atomic.AddUint64(&localQueueDrop, 1)
}

func IncUnmatched() {
	UnmatchedFrames.Inc()
	atomic.AddUint64(&localUnmatched, 1)
}

// IncOverrun counts a frame superseded while the channel slot was full.
func IncOverrun(channel string) {
	RxOverruns.WithLabelValues(channel).Inc()
	atomic.AddUint64(&localOverruns, 1)
}

func IncCaptured(channel string) {
	CapturedFrames.WithLabelValues(channel).Inc()
	atomic.AddUint64(&localCaptured, 1)
}

func IncDecoded(field string) {
	DecodedUpdates.WithLabelValues(field).Inc()
	atomic.AddUint64(&localDecoded, 1)
}

func IncIgnored() {
	IgnoredFrames.Inc()
	atomic.AddUint64(&localIgnored, 1)
}

func IncTick(cadence string) {
	Ticks.WithLabelValues(cadence).Inc()
	atomic.AddUint64(&localTicks, 1)
}

func IncNotification(kind string) {
	Notifications.WithLabelValues(kind).Inc()
	atomic.AddUint64(&localNotifications, 1)
}

// SetSOC records the last decoded state of charge.
func SetSOC(pct int) {
	StateOfCharge.Set(float64(pct))
	if pct < 0 {
		pct = 0
	}
	atomic.StoreUint64(&localSOC, uint64(pct))
}

func IncPublished() {
	MQTTPublished.Inc()
	atomic.AddUint64(&localPublished, 1)
}

func IncCommand() {
	MQTTCommands.Inc()
	atomic.AddUint64(&localCommands, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

func IncMalformed() {
	MalformedFrames.Inc()
	atomic.AddUint64(&localMalformed, 1)
}

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrSerialRead, ErrSocketCANRead, ErrCNLRead, ErrCNLDial, ErrHandshake,
		ErrMQTTPublish, ErrMQTTCommand, ErrParams,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
