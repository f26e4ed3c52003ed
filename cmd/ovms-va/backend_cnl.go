package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/cnl"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/transport"
)

// dialCNL is a hook for tests (overridden in unit tests).
var dialCNL = cnl.Dial

// redialWait pauses between reconnect attempts; it returns early on shutdown.
var redialWait = func(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// initCNLBackend reads frames from a remote cannelloni peer, typically a
// gateway that bridges the car's bus over the network. The connection is
// re-established with backoff whenever it drops; dec drains each connection.
func initCNLBackend(ctx context.Context, cfg *appConfig, dec transport.MultiFrameDecoder, sink transport.FrameSink, l *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	if cfg.cnlAddr == "" {
		return func() {}, errors.New("cannelloni backend needs cnl-addr")
	}
	l.Info("backend_open", "backend", "cannelloni", "addr", cfg.cnlAddr)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("cnl_rx_end")
		bo := newBackoff(rxBackoffMin, cnlRedialMax)
		emit := func(fr can.Frame) {
			metrics.IncRx(metrics.BackendCannelloni)
			deliver(sink, l, fr)
		}
		for ctx.Err() == nil {
			c, err := dialCNL(ctx, cfg.cnlAddr, cfg.handshakeTO)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				d := bo.next()
				if errors.Is(err, cnl.ErrBadHello) {
					metrics.IncError(metrics.ErrHandshake)
				} else {
					metrics.IncError(metrics.ErrCNLDial)
				}
				l.Warn("cnl_dial_error", "addr", cfg.cnlAddr, "error", err, "backoff", d)
				redialWait(ctx, d)
				continue
			}
			// unblock the reader on shutdown
			stop := context.AfterFunc(ctx, func() { _ = c.Close() })
			l.Info("cnl_connected", "addr", cfg.cnlAddr)
			bo.reset()
			n, err := dec.DecodeN(c, 0, emit)
			stop()
			_ = c.Close()
			if ctx.Err() != nil {
				return
			}
			if !errors.Is(err, io.EOF) {
				metrics.IncError(metrics.ErrCNLRead)
			}
			d := bo.next()
			l.Warn("cnl_disconnected", "addr", cfg.cnlAddr, "frames", n, "error", err, "backoff", d)
			redialWait(ctx, d)
		}
	}()
	// the loop owns the connection and exits on ctx
	return func() {}, nil
}

