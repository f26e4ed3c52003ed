//go:build linux

package main

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/capture"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/socketcan"
)

func TestKernelFiltersMirrorAcceptance(t *testing.T) {
	acc := capture.DefaultAcceptance()
	got := kernelFilters(acc)
	if len(got) != len(acc.Rules()) {
		t.Fatalf("filters=%d rules=%d", len(got), len(acc.Rules()))
	}
	if got[0].ID != capture.IDReservedBase || got[0].Mask&can.CAN_SFF_MASK != 0x7FD {
		t.Fatalf("channel A filter %+v", got[0])
	}
	if got[1].ID != capture.IDSOC || got[1].Mask&can.CAN_EFF_FLAG == 0 {
		t.Fatalf("SOC filter %+v", got[1])
	}
}

// TestInitSocketCANBackendBasic ensures a frame reaches the sink and metrics increment.
func TestInitSocketCANBackendBasic(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frame := can.NewFrame(0x4E9, 'B', 'U', '1', '0', '2', '6', '8', '9')
	var gotFilters []socketcan.Filter
	openSocketCANDevice = func(iface string, filters []socketcan.Filter) (socketcan.Dev, error) {
		gotFilters = filters
		return &fakeSocketDev{frames: []can.Frame{frame}, errAfter: true}, nil
	}
	defer func() {
		openSocketCANDevice = func(iface string, filters []socketcan.Filter) (socketcan.Dev, error) {
			return socketcan.Open(iface, filters)
		}
	}()
	var mu sync.Mutex
	sleeps := 0
	sleepFn = func(time.Duration) {
		mu.Lock()
		sleeps++
		mu.Unlock()
		time.Sleep(time.Millisecond)
	}
	defer func() { sleepFn = time.Sleep }()

	before := metrics.Snap()
	sink := make(chanSink, 1)
	cfg := &appConfig{backend: "socketcan", canIf: "vcan0"}
	var wg sync.WaitGroup
	cleanup, err := initSocketCANBackend(ctx, cfg, capture.DefaultAcceptance(), sink, testLogger(), &wg)
	if err != nil {
		t.Fatalf("initSocketCANBackend: %v", err)
	}
	defer cleanup()

	if fr := sink.next(t); fr != frame {
		t.Fatalf("unexpected frame: %+v", fr)
	}
	if len(gotFilters) != 4 {
		t.Fatalf("expected 4 kernel filters, got %d", len(gotFilters))
	}
	// let the read error path run at least once
	deadline := time.Now().Add(200 * time.Millisecond)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := sleeps
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	snap := metrics.Snap()
	if snap.Rx <= before.Rx {
		t.Fatalf("expected rx increment")
	}
	if snap.Errors <= before.Errors {
		t.Fatalf("expected at least one error increment (read error after frame)")
	}
	cancel()
	wg.Wait()
}
