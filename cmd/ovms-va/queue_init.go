package main

import (
	"context"
	"log/slog"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/transport"
)

// initQueue starts the capture context: one goroutine delivering every
// received frame to deliver, in arrival order.
func initQueue(ctx context.Context, cfg *appConfig, deliver func(can.Frame), l *slog.Logger) *transport.Queue {
	l.Info("capture_queue", "buffer", cfg.rxQueue)
	return transport.NewQueue(ctx, cfg.rxQueue, deliver, transport.Hooks{
		OnDrop: func() error {
			metrics.IncQueueDrop()
			return transport.ErrRxOverflow
		},
	})
}
