package can

// SocketCAN flag bits for can_id (same values as <linux/can.h>)
const (
	CAN_EFF_FLAG = 0x80000000
	CAN_RTR_FLAG = 0x40000000
	CAN_ERR_FLAG = 0x20000000
	CAN_SFF_MASK = 0x7FF
	CAN_EFF_MASK = 0x1FFFFFFF
)

// MaxLen is the classic CAN payload limit.
const MaxLen = 8

// Frame is a classic CAN frame as delivered by any RX backend.
// CANID carries EFF/RTR/ERR flags in its upper bits like SocketCAN.
// Only the first Len bytes of Data are valid.
type Frame struct {
	CANID uint32
	Len   uint8
	Data  [MaxLen]byte
}

// ID returns the identifier bits without the SocketCAN flags.
func (f Frame) ID() uint32 { return f.CANID & CAN_EFF_MASK }

// IsRemote reports a remote transmission request.
func (f Frame) IsRemote() bool { return f.CANID&CAN_RTR_FLAG != 0 }

// IsError reports an error frame.
func (f Frame) IsError() bool { return f.CANID&CAN_ERR_FLAG != 0 }

// Payload returns the valid part of Data.
func (f *Frame) Payload() []byte {
	n := f.Len
	if n > MaxLen {
		n = MaxLen
	}
	return f.Data[:n]
}

// NewFrame builds a standard-identifier data frame. Extra payload beyond 8 bytes is truncated.
func NewFrame(id uint32, data ...byte) Frame {
	var f Frame
	f.CANID = id & CAN_SFF_MASK
	if id > CAN_SFF_MASK {
		f.CANID = (id & CAN_EFF_MASK) | CAN_EFF_FLAG
	}
	f.Len = uint8(copy(f.Data[:], data))
	return f
}
