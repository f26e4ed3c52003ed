//go:build !linux

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/kstaniek/go-ovms-va/internal/capture"
	"github.com/kstaniek/go-ovms-va/internal/transport"
)

// Placeholder so non-linux builds compile; socketcan not supported.
func initSocketCANBackend(ctx context.Context, cfg *appConfig, acc capture.Acceptance, sink transport.FrameSink, l *slog.Logger, wg *sync.WaitGroup) (func(), error) {
	return func() {}, fmt.Errorf("socketcan backend unsupported on this platform")
}
