//go:build !linux

package socketcan

import (
	"errors"

	"github.com/kstaniek/go-ovms-va/internal/can"
)

// ErrUnsupported is returned by Open on platforms without SocketCAN.
var ErrUnsupported = errors.New("socketcan: unsupported platform")

// Device is unavailable off Linux.
type Device struct{}

func Open(string, []Filter) (*Device, error) { return nil, ErrUnsupported }

func (d *Device) Close() error { return nil }

func (d *Device) ReadFrame(*can.Frame) error { return ErrUnsupported }
