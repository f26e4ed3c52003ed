package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/capture"
	"github.com/kstaniek/go-ovms-va/internal/cnl"
	"github.com/kstaniek/go-ovms-va/internal/transport"
)

// initBackend selects the RX backend, starts its read loop feeding sink and
// returns its cleanup. The daemon is listen-only: no backend has a TX path.
func initBackend(ctx context.Context, cfg *appConfig, acc capture.Acceptance, sink transport.FrameSink, l *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	switch cfg.backend {
	case "serial":
		return initSerialBackend(ctx, cfg, sink, l, wg)
	case "socketcan":
		return initSocketCANBackend(ctx, cfg, acc, sink, l, wg)
	case "cannelloni":
		return initCNLBackend(ctx, cfg, &cnl.Codec{}, sink, l, wg)
	default:
		return func() {}, fmt.Errorf("unknown backend %q (use socketcan|serial|cannelloni)", cfg.backend)
	}
}

// deliver hands a frame to the capture queue. Overflow is already counted
// by the queue hook.
func deliver(sink transport.FrameSink, l *slog.Logger, fr can.Frame) {
	if err := sink.Push(fr); err != nil {
		l.Debug("rx_frame_dropped", "id", fr.ID(), "error", err)
	}
}
