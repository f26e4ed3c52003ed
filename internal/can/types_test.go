package can

import "testing"

func TestNewFrame(t *testing.T) {
	f := NewFrame(0x206, 0x7D, 0xC8)
	if f.CANID != 0x206 || f.Len != 2 {
		t.Fatalf("unexpected frame %+v", f)
	}
	if got := f.Payload(); len(got) != 2 || got[0] != 0x7D || got[1] != 0xC8 {
		t.Fatalf("payload % X", got)
	}

	ext := NewFrame(0x18FEF100, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	if ext.CANID&CAN_EFF_FLAG == 0 {
		t.Fatalf("expected EFF flag for 29-bit id")
	}
	if ext.ID() != 0x18FEF100 {
		t.Fatalf("ID() = 0x%X", ext.ID())
	}
	if ext.Len != MaxLen {
		t.Fatalf("payload not truncated: len=%d", ext.Len)
	}
}

func TestFrameFlags(t *testing.T) {
	f := Frame{CANID: 0x123 | CAN_RTR_FLAG}
	if !f.IsRemote() || f.IsError() {
		t.Fatalf("flags misreported for %+v", f)
	}
	e := Frame{CANID: CAN_ERR_FLAG | 0x4}
	if !e.IsError() {
		t.Fatalf("expected error frame")
	}
	bad := Frame{Len: 12}
	if n := len(bad.Payload()); n != MaxLen {
		t.Fatalf("Payload should clamp to %d, got %d", MaxLen, n)
	}
}
