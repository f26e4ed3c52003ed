// Package decoder turns captured Volt/Ampera frames into vehicle state updates.
package decoder

import (
	"encoding/binary"

	"github.com/kstaniek/go-ovms-va/internal/capture"
	"github.com/kstaniek/go-ovms-va/internal/metrics"
	"github.com/kstaniek/go-ovms-va/internal/vehicle"
)

// SOCDivisor is the raw SOC count per 1% of a 16.1 kWh pack
// (4000 counts per kWh).
const SOCDivisor = 644

// Update reports which vehicle fields a frame changed.
type Update struct {
	SOC       bool
	VINFirst  bool
	VINSecond bool
}

// Any reports whether the frame had an effect.
func (u Update) Any() bool { return u.SOC || u.VINFirst || u.VINSecond }

// SOCPercent converts the raw big-endian SOC count to whole percent, truncating.
func SOCPercent(raw uint16) int { return int(raw) / SOCDivisor }

// Decode applies one captured frame to st. Unknown match identifiers and
// short payloads have no effect.
func Decode(f *capture.CapturedFrame, st *vehicle.State) Update {
	var u Update
	p := f.Payload()
	switch f.Match {
	case capture.MatchSOC:
		if len(p) < 2 {
			break
		}
		pct := SOCPercent(binary.BigEndian.Uint16(p[0:2]))
		st.SetSOC(pct)
		metrics.SetSOC(pct)
		u.SOC = true
	case capture.MatchVINFirst:
		if len(p) < 8 {
			break
		}
		st.SetVINFirst([8]byte(p[:8]))
		u.VINFirst = true
	case capture.MatchVINSecond:
		if len(p) < 8 {
			break
		}
		st.SetVINSecond([8]byte(p[:8]))
		u.VINSecond = true
	}
	switch {
	case u.SOC:
		metrics.IncDecoded("soc")
	case u.VINFirst:
		metrics.IncDecoded("vin_first")
	case u.VINSecond:
		metrics.IncDecoded("vin_second")
	default:
		metrics.IncIgnored()
	}
	return u
}
