// Package driver implements the ControllerDriver contract (§4.2): the
// per-device command set that sits on top of a SerialBus (Generic) or runs
// entirely in-process (Simulator).
package driver

import (
	"context"
	"time"

	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

// RemoteSetpointState selects whether the instrument honours the external
// (remote) setpoint.
type RemoteSetpointState int

const (
	Disable RemoteSetpointState = iota
	Enable
)

// Reading is what a driver can read from the instrument directly: everything
// in ProcessValues except DeviceName, RemoteSetpoint and RampStatus, which
// the worker overlays from its own state (§4.3).
type Reading struct {
	Timestamp       time.Time
	ProcessValue    quantity.Quantity
	Setpoint        quantity.Quantity
	WorkingSetpoint quantity.Quantity
	WorkingOutput   quantity.Quantity
	Status          model.InstrumentStatus
}

// ControllerDriver is the per-device command interface every driver variant
// implements: Generic, Series3200 (aliased to Generic) and Simulator.
type ControllerDriver interface {
	GetProcessValues(ctx context.Context) (Reading, error)
	SelectRemoteSetpoint(ctx context.Context, state RemoteSetpointState) error
	WriteRemoteSetpoint(ctx context.Context, value quantity.Quantity) error
	AcknowledgeAllAlarms(ctx context.Context) error
	ReadStatus(ctx context.Context) (model.InstrumentStatus, error)
}
