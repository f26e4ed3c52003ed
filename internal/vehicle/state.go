// Package vehicle holds the decoded vehicle state shared between the
// capture path (single writer) and the rest of the process (readers).
package vehicle

import (
	"bytes"
	"sync"
)

const (
	// VINLen is the number of identifier characters carried on the bus.
	VINLen = 16
	// CarType identifies the Volt/Ampera vehicle module.
	CarType = "VA"
)

// Units is the distance display preference.
type Units byte

const (
	Miles      Units = 'M'
	Kilometres Units = 'K'
)

// State is the vehicle state store. The decoder is the only writer of the
// SOC and VIN fields; staleness counters are owned by the ticker.
type State struct {
	mu       sync.RWMutex
	carType  string
	units    Units
	soc      int
	vin      [VINLen + 1]byte
	vinFirst bool
	vinLast  bool
	stale    Staleness
}

// Staleness holds per-category countdowns, in seconds, until data is stale.
type Staleness struct {
	Ambient int `json:"ambient"`
	Temps   int `json:"temps"`
	GPS     int `json:"gps"`
	TPMS    int `json:"tpms"`
}

// Snapshot is a consistent copy of State for readers.
type Snapshot struct {
	CarType     string    `json:"car_type"`
	Units       string    `json:"units"`
	SOC         int       `json:"soc"`
	VIN         string    `json:"vin"`
	VINComplete bool      `json:"vin_complete"`
	Stale       Staleness `json:"stale"`
}

func NewState() *State {
	s := &State{}
	s.Reset()
	return s
}

// Reset returns the state to power-on values.
func (s *State) Reset() {
	s.mu.Lock()
	s.carType = CarType
	s.units = Miles
	s.soc = 0
	s.vin = [VINLen + 1]byte{}
	s.vinFirst, s.vinLast = false, false
	s.stale = Staleness{}
	s.mu.Unlock()
}

func (s *State) SetSOC(pct int) { s.mu.Lock(); s.soc = pct; s.mu.Unlock() }

func (s *State) SOC() int { s.mu.RLock(); defer s.mu.RUnlock(); return s.soc }

// SetVINFirst stores characters 0..7 of the identifier.
func (s *State) SetVINFirst(half [8]byte) {
	s.mu.Lock()
	copy(s.vin[0:8], half[:])
	s.vinFirst = true
	s.mu.Unlock()
}

// SetVINSecond stores characters 8..15 and terminates the buffer.
func (s *State) SetVINSecond(half [8]byte) {
	s.mu.Lock()
	copy(s.vin[8:16], half[:])
	s.vin[VINLen] = 0
	s.vinLast = true
	s.mu.Unlock()
}

// VIN returns the identifier up to the first terminator.
func (s *State) VIN() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vinString()
}

func (s *State) vinString() string {
	b := s.vin[:]
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// VINComplete reports whether both halves have arrived since the last Reset.
func (s *State) VINComplete() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vinFirst && s.vinLast
}

func (s *State) SetUnits(u Units) {
	if u != Kilometres {
		u = Miles
	}
	s.mu.Lock()
	s.units = u
	s.mu.Unlock()
}

func (s *State) Units() Units { s.mu.RLock(); defer s.mu.RUnlock(); return s.units }

// SetStale loads the staleness countdowns (written by the modules that own
// each data category).
func (s *State) SetStale(st Staleness) { s.mu.Lock(); s.stale = st; s.mu.Unlock() }

func (s *State) Stale() Staleness { s.mu.RLock(); defer s.mu.RUnlock(); return s.stale }

// DecayStale decrements every positive countdown by one, never below zero.
func (s *State) DecayStale() {
	s.mu.Lock()
	for _, c := range []*int{&s.stale.Ambient, &s.stale.Temps, &s.stale.GPS, &s.stale.TPMS} {
		if *c > 0 {
			*c--
		}
	}
	s.mu.Unlock()
}

func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{
		CarType:     s.carType,
		Units:       string(s.units),
		SOC:         s.soc,
		VIN:         s.vinString(),
		VINComplete: s.vinFirst && s.vinLast,
		Stale:       s.stale,
	}
}
