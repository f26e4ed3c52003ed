package capture

import "github.com/kstaniek/go-ovms-va/internal/can"

// Channel identifies one of the two receive buffers.
type Channel uint8

const (
	ChannelA Channel = iota // RXB0, serviced first
	ChannelB                // RXB1
)

func (c Channel) String() string {
	if c == ChannelA {
		return "a"
	}
	return "b"
}

// Match identifiers assigned by the channel B acceptance rules.
const (
	MatchReserved  uint8 = 0 // channel A range, not decoded
	MatchSOC       uint8 = 2
	MatchVINFirst  uint8 = 3
	MatchVINSecond uint8 = 4
)

// CAN identifiers carried by the Volt/Ampera bus.
const (
	IDReservedBase uint32 = 0x100
	IDSOC          uint32 = 0x206
	IDVINFirst     uint32 = 0x4E9
	IDVINSecond    uint32 = 0x514
)

const (
	maskChannelA uint32 = 0x7FD
	maskExact    uint32 = 0x7FF
)

// Rule accepts a frame when (id & Mask) == (ID & Mask) and tags it with Match.
type Rule struct {
	Match uint8
	ID    uint32
	Mask  uint32
}

func (r Rule) accepts(id uint32) bool { return id&r.Mask == r.ID&r.Mask }

// Acceptance is the static filter setup of both channels.
type Acceptance struct {
	A []Rule
	B []Rule
}

// DefaultAcceptance is the Volt/Ampera setup: channel A takes 0x100/0x102
// (reserved), channel B takes SOC and both VIN halves.
func DefaultAcceptance() Acceptance {
	return Acceptance{
		A: []Rule{{Match: MatchReserved, ID: IDReservedBase, Mask: maskChannelA}},
		B: []Rule{
			{Match: MatchSOC, ID: IDSOC, Mask: maskExact},
			{Match: MatchVINFirst, ID: IDVINFirst, Mask: maskExact},
			{Match: MatchVINSecond, ID: IDVINSecond, Mask: maskExact},
		},
	}
}

// Classify returns the channel and match identifier for a frame. RTR and
// error frames are never accepted, nor are identifiers wider than 11 bits.
// The EFF bit itself is not compared because the serial adapter marks every
// frame as extended.
func (a Acceptance) Classify(fr can.Frame) (Channel, uint8, bool) {
	if fr.IsRemote() || fr.IsError() {
		return 0, 0, false
	}
	id := fr.ID()
	if id > can.CAN_SFF_MASK {
		return 0, 0, false
	}
	for _, r := range a.A {
		if r.accepts(id) {
			return ChannelA, r.Match, true
		}
	}
	for _, r := range a.B {
		if r.accepts(id) {
			return ChannelB, r.Match, true
		}
	}
	return 0, 0, false
}

// Rules returns every rule of both channels, channel A first.
func (a Acceptance) Rules() []Rule {
	out := make([]Rule, 0, len(a.A)+len(a.B))
	out = append(out, a.A...)
	return append(out, a.B...)
}
