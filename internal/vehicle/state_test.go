package vehicle

import (
	"sync"
	"testing"
)

func TestVINHalves(t *testing.T) {
	s := NewState()
	if s.VINComplete() {
		t.Fatalf("fresh state must not report a complete VIN")
	}
	s.SetVINFirst([8]byte{'B', 'U', '1', '0', '2', '6', '8', '9'})
	if s.VINComplete() {
		t.Fatalf("one half is not a complete VIN")
	}
	if got := s.VIN(); got != "BU102689" {
		t.Fatalf("VIN after first half = %q", got)
	}
	s.SetVINSecond([8]byte{'G', '1', 'R', 'D', '6', 'E', '4', '6'})
	if !s.VINComplete() {
		t.Fatalf("expected complete VIN")
	}
	if got := s.VIN(); got != "BU102689G1RD6E46" {
		t.Fatalf("VIN = %q", got)
	}
	s.Reset()
	if s.VIN() != "" || s.VINComplete() {
		t.Fatalf("Reset did not clear VIN")
	}
}

func TestDecayStaleClampsAtZero(t *testing.T) {
	s := NewState()
	s.SetStale(Staleness{Ambient: 2, Temps: 1, GPS: 0, TPMS: 3})
	for i := 0; i < 5; i++ {
		s.DecayStale()
	}
	if got := s.Stale(); got != (Staleness{}) {
		t.Fatalf("expected all zero, got %+v", got)
	}

	s.SetStale(Staleness{Ambient: 2, TPMS: 1})
	s.DecayStale()
	if got := s.Stale(); got != (Staleness{Ambient: 1}) {
		t.Fatalf("after one decay got %+v", got)
	}
}

func TestUnits(t *testing.T) {
	s := NewState()
	if s.Units() != Miles {
		t.Fatalf("default units %q", s.Units())
	}
	s.SetUnits(Kilometres)
	if s.Units() != Kilometres {
		t.Fatalf("units not stored")
	}
	s.SetUnits('x')
	if s.Units() != Miles {
		t.Fatalf("unknown units should fall back to miles")
	}
}

func TestSnapshot(t *testing.T) {
	s := NewState()
	s.SetSOC(57)
	s.SetVINFirst([8]byte{'A', 'B', 'C', 'D', 'E', 'F', 'G', 'H'})
	snap := s.Snapshot()
	if snap.CarType != CarType || snap.SOC != 57 || snap.VIN != "ABCDEFGH" || snap.VINComplete {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.Units != "M" {
		t.Fatalf("units %q", snap.Units)
	}
}

func TestConcurrentReadersSingleWriter(t *testing.T) {
	s := NewState()
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i <= 100; i++ {
			s.SetSOC(i)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if v := s.Snapshot().SOC; v < 0 || v > 100 {
				t.Errorf("torn SOC read %d", v)
				return
			}
		}
	}()
	wg.Wait()
	if s.SOC() != 100 {
		t.Fatalf("final SOC %d", s.SOC())
	}
}
