// Package model holds the data types shared across the acquisition, bus and
// RPC layers: device configuration, per-poll process values, the instrument
// status bitset and ramp state.
package model

import (
	"time"

	"eurotherm-supervisor/internal/quantity"
)

// DriverKind selects which ControllerDriver implementation a device uses.
type DriverKind string

const (
	DriverSimulate  DriverKind = "simulate"
	DriverGeneric   DriverKind = "generic"
	DriverModel3208 DriverKind = "model3208" // treated as Generic, per spec
)

// ConnectionConfig names the shared serial port a device is wired to.
type ConnectionConfig struct {
	Port     string
	BaudRate int
}

// DeviceConfig describes one configured controller.
type DeviceConfig struct {
	Name         string
	UnitAddress  uint8
	Connection   ConnectionConfig
	SamplingRate quantity.Quantity // Hz
	Driver       DriverKind
}

// InstrumentStatus is an OR-combinable bitset of instrument conditions.
type InstrumentStatus uint32

const (
	StatusOk InstrumentStatus = 1 << iota
	StatusAlarm1
	StatusAlarm2
	StatusAlarm3
	StatusAlarm4
	StatusSensorBreak
	StatusLoopBreak
	StatusHeaterFail
	StatusLoadFail
	StatusProgramEnd
	StatusPVOutOfRange
	StatusNewAlarm
	StatusTimerRampRunning
	StatusRemoteSPFail
	StatusLocalRemoteSPSelect
)

// errorMask is the set of flags that suppress StatusOk when any is set.
const errorMask = StatusAlarm1 | StatusAlarm2 | StatusAlarm3 | StatusAlarm4 |
	StatusSensorBreak | StatusLoopBreak | StatusHeaterFail | StatusLoadFail |
	StatusPVOutOfRange | StatusRemoteSPFail

// Has reports whether flag is set in s.
func (s InstrumentStatus) Has(flag InstrumentStatus) bool { return s&flag == flag }

// WithOk derives StatusOk: set iff no error flag is present.
func (s InstrumentStatus) WithOk() InstrumentStatus {
	if s&errorMask == 0 {
		return s | StatusOk
	}
	return s &^ StatusOk
}

// RampState is the lifecycle state of a device's active ramp, as observed by
// a poll. Holding is reserved — the scheduler never emits it (§9 open question).
type RampState int

const (
	RampNone RampState = iota
	RampRamping
	RampHolding
	RampStopped
	RampFinished
)

func (r RampState) String() string {
	switch r {
	case RampRamping:
		return "Ramping"
	case RampHolding:
		return "Holding"
	case RampStopped:
		return "Stopped"
	case RampFinished:
		return "Finished"
	default:
		return "NoRamp"
	}
}

// ProcessValues is one poll's reading for a device, overlaid with the
// worker's current remote setpoint and ramp status.
type ProcessValues struct {
	DeviceName      string
	Timestamp       time.Time
	ProcessValue    quantity.Quantity
	Setpoint        quantity.Quantity
	WorkingSetpoint quantity.Quantity
	RemoteSetpoint  quantity.Quantity
	WorkingOutput   quantity.Quantity
	Status          InstrumentStatus
	RampStatus      RampState
}
