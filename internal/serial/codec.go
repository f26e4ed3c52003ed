package serial

import (
	"bytes"
	"encoding/binary"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
)

// Codec decodes the RX stream of a CAN-to-UART adapter.
type Codec struct{}

// CompactBuffer reclaims consumed prefix capacity when underlying buffer
// grows too large relative to unread bytes. It returns true if compaction
// occurred.
func CompactBuffer(b *bytes.Buffer) bool {
	data := b.Bytes()
	if len(data) < 1024 {
		return false
	}
	// unread < 25% of capacity
	if cap(data) > 0 && len(data)*4 < cap(data) {
		clone := make([]byte, len(data))
		copy(clone, data)
		b.Reset()
		_, _ = b.Write(clone)
		return true
	}
	return false
}

// DecodeStream reads from in and emits complete frames via out.
// Incomplete trailing bytes stay in in for the next call.
//
// RX envelope:
//
//	2D D4       preamble
//	LEN         ID(4) + payload(0..8) + checksum(1)
//	ID          4 bytes big-endian
//	PAYLOAD     LEN-5 bytes
//	CHK         0x2D + LEN + sum(ID, PAYLOAD) mod 256
//
// The adapter always reports identifiers as extended, so every frame
// carries CAN_EFF_FLAG.
func (Codec) DecodeStream(in *bytes.Buffer, out func(can.Frame)) error {
	const (
		pre0 = 0x2D
		pre1 = 0xD4

		minLn = 4 + 0 + 1
		maxLn = 4 + can.MaxLen + 1
	)
	header := []byte{pre0, pre1}

	for {
		data := in.Bytes()
		_ = CompactBuffer(in)
		if len(data) < 3 {
			return nil
		}

		i := bytes.Index(data, header)
		if i < 0 {
			// keep last byte in case the next read starts with the second preamble byte
			if in.Len() > 1 {
				last := data[len(data)-1]
				in.Reset()
				_ = in.WriteByte(last)
			}
			return nil
		}
		if i > 0 {
			in.Next(i)
			continue
		}

		ln := int(data[2])
		if ln < minLn || ln > maxLn {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		req := 3 + ln
		if len(data) < req {
			return nil
		}

		sum := uint(pre0) + uint(data[2])
		for _, b := range data[3 : req-1] {
			sum += uint(b)
		}
		if byte(sum) != data[req-1] {
			metrics.IncMalformed()
			in.Next(1)
			continue
		}

		id := binary.BigEndian.Uint32(data[3:7])
		payload := data[7 : req-1]

		var f can.Frame
		f.CANID = (id & can.CAN_EFF_MASK) | can.CAN_EFF_FLAG
		f.Len = uint8(copy(f.Data[:], payload))

		out(f)
		metrics.IncRx(metrics.BackendSerial)
		in.Next(req)
	}
}
