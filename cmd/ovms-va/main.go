package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/capture"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/mqtt"
	"github.com/kstaniek/go-ovms-va/internal/notify"
	"github.com/kstaniek/go-ovms-va/internal/ticker"
	"github.com/kstaniek/go-ovms-va/internal/transport"
	"github.com/kstaniek/go-ovms-va/internal/va"
	"github.com/kstaniek/go-ovms-va/internal/vehicle"
)

func main() {
	cfg, showVersion := parseFlags()
	if showVersion {
		fmt.Printf("ovms-va %s (commit %s, built %s)\n", version, commit, date)
		return
	}
	if cfg == nil {
		os.Exit(2)
	}
	l := setupLogger(cfg.logFormat, cfg.logLevel)
	l.Info("build_info", "version", version, "commit", commit, "date", date)

	// runs after every other deferred cleanup
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	store, err := openParams(cfg, l)
	if err != nil {
		l.Error("params_open_error", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// mq is assigned before the tickers start and never changes afterwards.
	var mq *mqtt.Client
	notifier := notify.Multi{
		notify.LogNotifier{L: l},
		notify.NotifierFunc(func(k notify.Kind) {
			if mq != nil {
				mq.Notify(k)
			}
		}),
	}
	m := va.New(capture.DefaultAcceptance(), store, notifier)
	m.Initialise()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var wg sync.WaitGroup
	startMetricsLogger(ctx, cfg.logMetricsEvery, l, &wg)

	if cfg.mqttBroker != "" {
		dispatch := mqtt.Dispatcher{Control: vehicle.NopControl{}, Params: store}
		c := mqtt.NewClient(mqtt.Config{
			Broker:         cfg.mqttBroker,
			ClientID:       cfg.mqttClientID,
			Topic:          cfg.mqttTopic,
			NotifyTopic:    cfg.mqttNotifyTopic,
			CommandTopic:   cfg.mqttCmdTopic,
			UpdateInterval: cfg.publishEvery,
		}, m.State().Snapshot, dispatch.Dispatch)
		if err := c.Connect(); err != nil {
			l.Warn("mqtt_disabled", "error", err)
		} else {
			mq = c
			mq.Start(ctx)
			defer mq.Close()
		}
	}

	q := initQueue(ctx, cfg, m.FrameReady, l)
	cleanup, berr := initBackend(ctx, cfg, m.Acceptance(), q, l, &wg)
	if berr != nil {
		l.Error("backend_init_error", "error", berr)
		shutdown(cancel, cleanup, q, &wg)
		exitCode = 1
		return
	}
	var backendUp atomic.Bool
	backendUp.Store(true)

	wg.Add(2)
	go func() {
		defer wg.Done()
		ticker.Run(ctx, time.Second, m.Ticker)
	}()
	go func() {
		defer wg.Done()
		ticker.Run(ctx, 100*time.Millisecond, func() {
			m.Ticker10th()
			if q.Len() == 0 {
				m.IdlePoll()
			}
		})
	}()

	metrics.SetReadinessFunc(func() bool { return backendUp.Load() && ctx.Err() == nil })
	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		srvHTTP := metrics.StartHTTP(cfg.metricsAddr, m.StatusHandler())
		defer func() { _ = srvHTTP.Shutdown(context.Background()) }()
		if cfg.mdnsEnable {
			advertise(ctx, cfg, l)
		}
	} else if cfg.mdnsEnable {
		l.Warn("mdns_skipped", "reason", "metrics-addr empty, nothing to advertise")
	}

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	s := <-sigCh
	l.Info("shutdown_signal", "signal", s.String())
	backendUp.Store(false)
	shutdown(cancel, cleanup, q, &wg)
}

// shutdown stops the backend and every background loop, then waits for them.
func shutdown(cancel context.CancelFunc, cleanup func(), q *transport.Queue, wg *sync.WaitGroup) {
	cancel()
	if cleanup != nil {
		cleanup()
	}
	q.Close()
	wg.Wait()
}

// advertise registers the HTTP endpoint via mDNS until ctx ends.
func advertise(ctx context.Context, cfg *appConfig, l *slog.Logger) {
	port := portOf(cfg.metricsAddr)
	if port == 0 {
		l.Warn("mdns_start_failed", "error", "cannot determine port", "addr", cfg.metricsAddr)
		return
	}
	cleanupMDNS, err := startMDNS(ctx, cfg, port)
	if err != nil {
		l.Warn("mdns_start_failed", "error", err)
		return
	}
	l.Info("mdns_started", "service", mdnsServiceType, "name", cfg.mdnsName, "port", port)
	go func() { <-ctx.Done(); cleanupMDNS() }()
}

// portOf extracts the port from host:port or :port; 0 if absent.
func portOf(addr string) int {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}
	return n
}
