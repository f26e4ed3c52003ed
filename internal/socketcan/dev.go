package socketcan

import "github.com/kstaniek/go-ovms-va/internal/can"

// Dev is the minimal interface needed by the RX backend.
// Implemented by *Device in production and by fakes in tests.
type Dev interface {
	ReadFrame(*can.Frame) error
	Close() error
}

// Filter is one kernel acceptance filter: a frame passes when
// can_id & Mask == ID & Mask.
type Filter struct {
	ID   uint32
	Mask uint32
}

// StandardFilter matches standard-identifier data frames only, so extended
// and remote frames never reach user space.
func StandardFilter(id, mask uint32) Filter {
	return Filter{
		ID:   id & can.CAN_SFF_MASK,
		Mask: (mask & can.CAN_SFF_MASK) | can.CAN_EFF_FLAG | can.CAN_RTR_FLAG,
	}
}
