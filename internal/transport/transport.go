package transport

import (
	"io"

	"github.com/kstaniek/go-ovms-va/internal/can"
	"github.com/kstaniek/go-ovms-va/internal/cnl"
)

// MultiFrameDecoder drains frames from a stream until max is reached or the
// stream fails.
type MultiFrameDecoder interface {
	DecodeN(r io.Reader, max int, onFrame func(can.Frame)) (int, error)
}

// FrameSink accepts frames read by an RX backend.
type FrameSink interface {
	Push(can.Frame) error
}

// Compile-time assertions.
var (
	_ MultiFrameDecoder = (*cnl.Codec)(nil)
	_ FrameSink         = (*Queue)(nil)
)
