//go:build linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/capture"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/socketcan"
	"github.com/kstaniek/go-ovms-va/internal/transport"
)

// openSocketCANDevice is a hook for tests (overridden in unit tests).
var openSocketCANDevice = func(iface string, filters []socketcan.Filter) (socketcan.Dev, error) {
	return socketcan.Open(iface, filters)
}

// kernelFilters mirrors the acceptance rules so the kernel discards traffic
// the capture controller would reject anyway.
func kernelFilters(acc capture.Acceptance) []socketcan.Filter {
	rules := acc.Rules()
	out := make([]socketcan.Filter, 0, len(rules))
	for _, r := range rules {
		out = append(out, socketcan.StandardFilter(r.ID, r.Mask))
	}
	return out
}

// initSocketCANBackend opens the interface and launches the RX loop.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, acc capture.Acceptance, sink transport.FrameSink, l *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	filters := kernelFilters(acc)
	dev, err := openSocketCANDevice(cfg.canIf, filters)
	if err != nil {
		return func() {}, fmt.Errorf("socketcan open %s: %w", cfg.canIf, err)
	}
	l.Info("backend_open", "backend", "socketcan", "if", cfg.canIf, "filters", len(filters))
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("socketcan_rx_end")
		bo := newBackoff(rxBackoffMin, rxBackoffMax)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			var fr can.Frame
			if err := dev.ReadFrame(&fr); err != nil {
				if ctx.Err() != nil {
					return
				}
				d := bo.next()
				metrics.IncError(metrics.ErrSocketCANRead)
				l.Warn("socketcan_read_error", "error", err, "backoff", d)
				sleepFn(d)
				continue
			}
			metrics.IncRx(metrics.BackendSocketCAN)
			deliver(sink, l, fr)
			bo.reset()
		}
	}()
	return func() { _ = dev.Close() }, nil
}
