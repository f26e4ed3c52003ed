//go:build linux

package socketcan

import (
	"encoding/binary"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/kstaniek/go-ovms-va/internal/can"
)

// Device is a raw CAN socket bound to one interface.
type Device struct {
	fd int
}

// Open binds a raw CAN socket to iface. When filters is non-empty the
// kernel drops every frame no filter accepts.
func Open(iface string, filters []Filter) (*Device, error) {
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_CAN): %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FD_FRAMES, 0); err != nil {
		// older kernels may not know this option
		if err != unix.ENOPROTOOPT {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("disable CAN FD: %w", err)
		}
	}
	if len(filters) > 0 {
		kf := make([]unix.CanFilter, len(filters))
		for i, f := range filters {
			kf[i] = unix.CanFilter{Id: f.ID, Mask: f.Mask}
		}
		if err := unix.SetsockoptCanRawFilter(fd, unix.SOL_CAN_RAW, unix.CAN_RAW_FILTER, kf); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("set CAN_RAW_FILTER: %w", err)
		}
	}
	ifi, err := net.InterfaceByName(iface)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("if %q: %w", iface, err)
	}
	sa := &unix.SockaddrCAN{Ifindex: ifi.Index}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(can@%s): %w", iface, err)
	}
	return &Device{fd: fd}, nil
}

func (d *Device) Close() error { return unix.Close(d.fd) }

// ReadFrame reads one classic CAN frame from the raw CAN socket.
func (d *Device) ReadFrame(fr *can.Frame) error {
	var buf [unix.CAN_MTU]byte
	n, err := unix.Read(d.fd, buf[:])
	if err != nil {
		return err
	}
	if n != unix.CAN_MTU {
		return fmt.Errorf("short read: %d", n)
	}
	return parseFrame(buf[:], fr)
}

// parseFrame decodes struct can_frame (linux/can.h):
//
//	can_id  u32   [0:4]  host order, includes EFF/RTR/ERR flags
//	can_dlc u8    [4]
//	pad     3B    [5:8]
//	data    [8]   [8:16]
//
// Only little-endian hosts are supported.
func parseFrame(buf []byte, fr *can.Frame) error {
	if len(buf) < unix.CAN_MTU {
		return fmt.Errorf("short frame: %d", len(buf))
	}
	dlc := int(buf[4])
	if dlc > can.MaxLen {
		dlc = can.MaxLen
	}
	fr.CANID = binary.LittleEndian.Uint32(buf[0:4])
	fr.Len = uint8(dlc)
	fr.Data = [can.MaxLen]byte{}
	copy(fr.Data[:], buf[8:8+dlc])
	return nil
}
