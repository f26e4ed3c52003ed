package vehicle

// Control is the vehicle command capability. The Volt/Ampera module runs the
// bus listen-only, so the default implementation does nothing.
type Control interface {
	Wakeup() error
	WakeupTemps() error
	SetChargeMode(mode uint8) error
	SetChargeCurrent(amps uint8) error
	StartStopCharge(start bool) error
	LockUnlock(mode uint8, pin string) error
	TimerMode(mode uint8, start uint16) error
	Homelink(button uint8) error
}

// NopControl accepts every command and does nothing.
type NopControl struct{}

var _ Control = NopControl{}

func (NopControl) Wakeup() error                  { return nil }
func (NopControl) WakeupTemps() error             { return nil }
func (NopControl) SetChargeMode(uint8) error      { return nil }
func (NopControl) SetChargeCurrent(uint8) error   { return nil }
func (NopControl) StartStopCharge(bool) error     { return nil }
func (NopControl) LockUnlock(uint8, string) error { return nil }
func (NopControl) TimerMode(uint8, uint16) error  { return nil }
func (NopControl) Homelink(uint8) error           { return nil }
