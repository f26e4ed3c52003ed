package serial

import (
	"time"

	"github.com/tarm/serial"
)

// Port abstracts tarm/serial for testability. The daemon only listens, so
// no write side is exposed.
type Port interface {
	Read(p []byte) (int, error)
	Close() error
}

// Open opens the adapter's tty. A non-zero readTimeout makes Read return
// (0, nil) on idle lines.
func Open(name string, baud int, readTimeout time.Duration) (Port, error) {
	cfg := &serial.Config{Name: name, Baud: baud, ReadTimeout: readTimeout}
	return serial.OpenPort(cfg)
}
