package driver

import (
	"context"
	"math"
	"sync"
	"time"

	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
)

// typeKTableC/typeKTableMV is the NIST ITS-90 reference EMF table for a
// Type K thermocouple (cold junction at 0°C), sampled every 100°C from 0 to
// 1300°C, used to give the simulator a realistic thermocouple mV readback
// (§4.8) even though MVIN isn't part of the ProcessValues record itself.
var (
	typeKTableC  = [...]float64{0, 100, 200, 300, 400, 500, 600, 700, 800, 900, 1000, 1100, 1200, 1300}
	typeKTableMV = [...]float64{0.000, 4.096, 8.138, 12.209, 16.397, 20.644, 24.905, 29.129, 33.275, 37.326, 41.276, 45.119, 48.838, 52.410}
)

func typeKVoltage(celsius float64) float64 {
	n := len(typeKTableC)
	if celsius <= typeKTableC[0] {
		return typeKTableMV[0]
	}
	if celsius >= typeKTableC[n-1] {
		return typeKTableMV[n-1]
	}
	for i := 1; i < n; i++ {
		if celsius <= typeKTableC[i] {
			lo, hi := typeKTableC[i-1], typeKTableC[i]
			frac := (celsius - lo) / (hi - lo)
			return typeKTableMV[i-1] + frac*(typeKTableMV[i]-typeKTableMV[i-1])
		}
	}
	return typeKTableMV[n-1]
}

const simTimeConstant = 30.0 // seconds, first-order thermal response

// Simulator implements ControllerDriver entirely in-process: deterministic
// enough for tests and demos, with no hardware dependency. Grounded on the
// teacher's in-memory register stores (cmd/mocktty/main.go's store,
// cmd/server/main.go's rtuStore) generalised from raw register bytes to a
// physically-motivated first-order relaxation toward the remote setpoint.
type Simulator struct {
	mu             sync.Mutex
	localSetpoint  float64 // kelvin
	remoteSetpoint float64 // kelvin
	remoteSelected bool
	currentTemp    float64 // kelvin
	lastUpdate     time.Time
}

// NewSimulator constructs a simulator starting at startTemp with localTarget
// as its un-selected (local) setpoint.
func NewSimulator(startTemp, localTarget quantity.Quantity) *Simulator {
	return &Simulator{
		localSetpoint:  localTarget.Base(),
		remoteSetpoint: localTarget.Base(),
		currentTemp:    startTemp.Base(),
		lastUpdate:     time.Now(),
	}
}

// advanceLocked steps the first-order relaxation toward whichever setpoint
// (local or remote) currently governs, and returns that target.
func (s *Simulator) advanceLocked() float64 {
	now := time.Now()
	dt := now.Sub(s.lastUpdate).Seconds()
	s.lastUpdate = now

	target := s.localSetpoint
	if s.remoteSelected {
		target = s.remoteSetpoint
	}
	if dt > 0 {
		s.currentTemp = target + (s.currentTemp-target)*math.Exp(-dt/simTimeConstant)
	}
	return target
}

// GetProcessValues returns the simulator's current state. Status is always
// Ok; WorkingOutput is always 0% (§4.8).
func (s *Simulator) GetProcessValues(ctx context.Context) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	working := s.advanceLocked()
	return Reading{
		Timestamp:       time.Now(),
		ProcessValue:    quantity.Kelvin(s.currentTemp),
		Setpoint:        quantity.Kelvin(s.localSetpoint),
		WorkingSetpoint: quantity.Kelvin(working),
		WorkingOutput:   quantity.Percent(0),
		Status:          model.StatusOk,
	}, nil
}

// MeasuredVoltage reports the simulated Type-K thermocouple EMF for the
// current process value, for diagnostics only (not part of ProcessValues).
func (s *Simulator) MeasuredVoltage() quantity.Quantity {
	s.mu.Lock()
	celsius := s.currentTemp - 273.15
	s.mu.Unlock()
	mv, _ := quantity.New(typeKVoltage(celsius), "")
	return mv
}

// SelectRemoteSetpoint is a no-op beyond updating internal state.
func (s *Simulator) SelectRemoteSetpoint(ctx context.Context, state RemoteSetpointState) error {
	s.mu.Lock()
	s.remoteSelected = state == Enable
	s.mu.Unlock()
	return nil
}

// WriteRemoteSetpoint is a no-op beyond updating internal state.
func (s *Simulator) WriteRemoteSetpoint(ctx context.Context, value quantity.Quantity) error {
	s.mu.Lock()
	s.remoteSetpoint = value.Base()
	s.mu.Unlock()
	return nil
}

// AcknowledgeAllAlarms is a no-op: the simulator never raises alarms.
func (s *Simulator) AcknowledgeAllAlarms(ctx context.Context) error { return nil }

// ReadStatus always reports Ok plus LocalRemoteSPSelect when selected.
func (s *Simulator) ReadStatus(ctx context.Context) (model.InstrumentStatus, error) {
	s.mu.Lock()
	selected := s.remoteSelected
	s.mu.Unlock()
	status := model.StatusOk
	if selected {
		status |= model.StatusLocalRemoteSPSelect
	}
	return status, nil
}
