package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/serial"
	"github.com/kstaniek/go-ovms-va/internal/transport"
)

// sleepFn allows tests to intercept backoff sleeps.
var sleepFn = time.Sleep

// openSerialPort is a hook for tests (overridden in unit tests).
var openSerialPort = serial.Open

// initSerialBackend opens the adapter and launches the RX loop.
func initSerialBackend(ctx context.Context, cfg *appConfig, sink transport.FrameSink, l *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	sp, err := openSerialPort(cfg.serialDev, cfg.baud, cfg.serialReadTO)
	if err != nil {
		return func() {}, fmt.Errorf("open serial: %w", err)
	}
	l.Info("backend_open", "backend", "serial", "device", cfg.serialDev, "baud", cfg.baud)
	codec := serial.Codec{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer l.Info("serial_rx_end")
		buf := make([]byte, serialReadBufSize)
		acc := bytes.NewBuffer(nil)
		bo := newBackoff(rxBackoffMin, rxBackoffMax)
		emit := func(fr can.Frame) { deliver(sink, l, fr) }
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			n, err := sp.Read(buf)
			if n > 0 {
				acc.Write(buf[:n])
				_ = codec.DecodeStream(acc, emit)
				if acc.Len() == 0 && cap(acc.Bytes()) > largeBufferReclaimThreshold {
					acc = bytes.NewBuffer(nil)
				}
				bo.reset()
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				var perr *os.PathError
				if errors.As(err, &perr) {
					l.Error("serial_device_lost", "device", cfg.serialDev, "error", err)
					return
				}
				if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
					continue
				}
				d := bo.next()
				metrics.IncError(metrics.ErrSerialRead)
				l.Warn("serial_read_error", "error", err, "backoff", d)
				sleepFn(d)
			}
		}
	}()
	return func() { _ = sp.Close() }, nil
}
