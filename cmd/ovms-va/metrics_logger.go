package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/metrics"
)

func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				logSnapshot(l, metrics.Snap())
			case <-ctx.Done():
				return
			}
		}
	}()
}

func logSnapshot(l *slog.Logger, snap metrics.Snapshot) {
	l.Info("metrics_snapshot",
		"rx", snap.Rx,
		"queue_drops", snap.QueueDrops,
		"unmatched", snap.Unmatched,
		"overruns", snap.Overruns,
		"captured", snap.Captured,
		"decoded", snap.Decoded,
		"ignored", snap.Ignored,
		"malformed", snap.Malformed,
		"ticks", snap.Ticks,
		"notifications", snap.Notifications,
		"soc", snap.SOC,
		"mqtt_published", snap.Published,
		"mqtt_commands", snap.Commands,
		"errors", snap.Errors,
	)
}
