package main

import (
	"context"
	"encoding/binary"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/serial"
)

// fakeSerialPort implements serial.Port for tests.
type fakeSerialPort struct {
	reads [][]byte
	idx   int
	mu    sync.Mutex
}

func (f *fakeSerialPort) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.idx >= len(f.reads) {
		// after delivering all data, block briefly then return EOF repeatedly
		time.Sleep(10 * time.Millisecond)
		return 0, io.EOF
	}
	chunk := f.reads[f.idx]
	f.idx++
	n := copy(p, chunk)
	return n, nil
}
func (f *fakeSerialPort) Close() error { return nil }

// chanSink collects pushed frames.
type chanSink chan can.Frame

func (s chanSink) Push(fr can.Frame) error {
	select {
	case s <- fr:
	default:
	}
	return nil
}

func (s chanSink) next(t *testing.T) can.Frame {
	t.Helper()
	select {
	case fr := <-s:
		return fr
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timeout waiting for frame")
		return can.Frame{}
	}
}

// testLogger returns a no-op slog.Logger for tests.
func testLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// serTestWireEnvelope frames ID|payload the way the UART adapter sends it.
func serTestWireEnvelope(id uint32, payload ...byte) []byte {
	data := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(data[:4], id)
	copy(data[4:], payload)
	n := len(data)
	frame := make([]byte, n+4)
	frame[0] = 0x2D
	frame[1] = 0xD4
	frame[2] = byte(n + 1)
	sum := frame[2] + 0x2D
	for i, b := range data {
		frame[3+i] = b
		sum += b
	}
	frame[3+n] = sum
	return frame
}

// TestInitSerialBackendBasic validates that a frame presented via the serial
// RX loop is decoded and pushed to the sink, and that the RX metric increments.
func TestInitSerialBackendBasic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enc := serTestWireEnvelope(0x206, 0x30, 0x00)
	// split across reads to exercise the accumulator
	openSerialPort = func(name string, baud int, to time.Duration) (serial.Port, error) {
		return &fakeSerialPort{reads: [][]byte{enc[:3], enc[3:]}}, nil
	}
	defer func() { openSerialPort = serial.Open }()

	before := metrics.Snap().Rx
	sink := make(chanSink, 4)
	cfg := &appConfig{backend: "serial", serialDev: "fake", baud: 115200, serialReadTO: 50 * time.Millisecond}
	var wg sync.WaitGroup
	cleanup, err := initSerialBackend(ctx, cfg, sink, testLogger(), &wg)
	if err != nil {
		t.Fatalf("initSerialBackend: %v", err)
	}
	defer cleanup()

	fr := sink.next(t)
	if fr.ID() != 0x206 || fr.Len != 2 || fr.Data[0] != 0x30 {
		t.Fatalf("unexpected frame: %+v", fr)
	}
	if metrics.Snap().Rx <= before {
		t.Fatalf("expected rx metric increment")
	}
	cancel()
	wg.Wait()
}

type fakeSocketDev struct {
	frames   []can.Frame
	idx      int
	errAfter bool
}

func (d *fakeSocketDev) ReadFrame(fr *can.Frame) error {
	if d.idx < len(d.frames) {
		*fr = d.frames[d.idx]
		d.idx++
		return nil
	}
	if d.errAfter {
		return io.ErrUnexpectedEOF
	}
	time.Sleep(10 * time.Millisecond)
	return io.EOF
}
func (d *fakeSocketDev) Close() error { return nil }
