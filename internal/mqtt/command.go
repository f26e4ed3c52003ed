package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kstaniek/go-ovms-va/internal/params"
	"github.com/kstaniek/go-ovms-va/internal/vehicle"
)

// CommandType names a vehicle command received on the command topic.
type CommandType string

const (
	CmdWakeup          CommandType = "wakeup"
	CmdWakeupTemps     CommandType = "wakeup_temps"
	CmdChargeMode      CommandType = "charge_mode"
	CmdChargeCurrent   CommandType = "charge_current"
	CmdStartStopCharge CommandType = "charge"
	CmdLockUnlock      CommandType = "lock_unlock"
	CmdTimerMode       CommandType = "timer_mode"
	CmdHomelink        CommandType = "homelink"
	CmdSetParam        CommandType = "set_param"
)

// Command is the JSON body of a command message.
//
//	{"type":"charge_mode","params":{"mode":1}}
type Command struct {
	Type   CommandType   `json:"type"`
	Params CommandParams `json:"params,omitempty"`
}

// CommandParams carries the arguments of every command type. Pointers tell
// a missing argument from a zero one.
type CommandParams struct {
	Mode      *uint8  `json:"mode,omitempty"`
	Current   *uint8  `json:"current,omitempty"`
	Start     *bool   `json:"start,omitempty"`
	PIN       string  `json:"pin,omitempty"`
	StartTime *uint16 `json:"start_time,omitempty"`
	Button    *uint8  `json:"button,omitempty"`
	Key       string  `json:"key,omitempty"`
	Value     *string `json:"value,omitempty"`
}

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingParam   = errors.New("missing command parameter")
	ErrNoParamStore   = errors.New("no parameter store")
)

// ParseCommand decodes a command message body.
func ParseCommand(b []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(b, &cmd); err != nil {
		return cmd, fmt.Errorf("decode command: %w", err)
	}
	if cmd.Type == "" {
		return cmd, fmt.Errorf("decode command: %w", ErrUnknownCommand)
	}
	return cmd, nil
}

// ParamWriter persists a configuration parameter.
type ParamWriter interface {
	Set(key, value string) error
}

// Dispatcher routes commands to the vehicle control capability and the
// parameter store.
type Dispatcher struct {
	Control vehicle.Control
	Params  ParamWriter
}

// Dispatch executes cmd. Missing arguments are reported before Control is
// touched, and set_param values are validated before they reach the store.
func (d Dispatcher) Dispatch(cmd Command) error {
	ctl := d.Control
	if ctl == nil {
		ctl = vehicle.NopControl{}
	}
	p := cmd.Params
	switch cmd.Type {
	case CmdWakeup:
		return ctl.Wakeup()
	case CmdWakeupTemps:
		return ctl.WakeupTemps()
	case CmdChargeMode:
		if p.Mode == nil {
			return fmt.Errorf("%s: mode: %w", cmd.Type, ErrMissingParam)
		}
		return ctl.SetChargeMode(*p.Mode)
	case CmdChargeCurrent:
		if p.Current == nil {
			return fmt.Errorf("%s: current: %w", cmd.Type, ErrMissingParam)
		}
		return ctl.SetChargeCurrent(*p.Current)
	case CmdStartStopCharge:
		if p.Start == nil {
			return fmt.Errorf("%s: start: %w", cmd.Type, ErrMissingParam)
		}
		return ctl.StartStopCharge(*p.Start)
	case CmdLockUnlock:
		if p.Mode == nil {
			return fmt.Errorf("%s: mode: %w", cmd.Type, ErrMissingParam)
		}
		return ctl.LockUnlock(*p.Mode, p.PIN)
	case CmdTimerMode:
		if p.Mode == nil {
			return fmt.Errorf("%s: mode: %w", cmd.Type, ErrMissingParam)
		}
		var start uint16
		if p.StartTime != nil {
			start = *p.StartTime
		}
		return ctl.TimerMode(*p.Mode, start)
	case CmdHomelink:
		if p.Button == nil {
			return fmt.Errorf("%s: button: %w", cmd.Type, ErrMissingParam)
		}
		return ctl.Homelink(*p.Button)
	case CmdSetParam:
		if p.Key == "" || p.Value == nil {
			return fmt.Errorf("%s: key/value: %w", cmd.Type, ErrMissingParam)
		}
		if err := params.Validate(p.Key, *p.Value); err != nil {
			return fmt.Errorf("%s: %w", cmd.Type, err)
		}
		if d.Params == nil {
			return ErrNoParamStore
		}
		return d.Params.Set(p.Key, *p.Value)
	default:
		return fmt.Errorf("%q: %w", cmd.Type, ErrUnknownCommand)
	}
}
