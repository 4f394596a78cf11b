// Package iomanager implements IOManager (§4.6): the process-wide lifecycle
// object over a configured set of devices, and the command router that
// turns RPC calls into worker method calls.
//
// Grounded on the teacher's internal/servermgr/manager.go (start/stop of a
// set of per-device goroutines guarded by a mutex, idempotent start) and
// internal/collector/manager.go (building one collector per configured
// device, failing fast on bad configuration).
package iomanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"eurotherm-supervisor/internal/bus"
	"eurotherm-supervisor/internal/driver"
	"eurotherm-supervisor/internal/errs"
	"eurotherm-supervisor/internal/fanout"
	"eurotherm-supervisor/internal/model"
	"eurotherm-supervisor/internal/quantity"
	"eurotherm-supervisor/internal/worker"
)

// AllDevices is the wildcard device name accepted by Ack.
const AllDevices = "*"

// IOManager owns every configured device's AcquisitionWorker and the single
// FanOut they all publish into.
type IOManager struct {
	configs []model.DeviceConfig

	mu      sync.Mutex
	running bool
	workers map[string]*worker.Worker
	order   []string
	fanOut  *fanout.FanOut
}

// New constructs a stopped IOManager over configs. Device names must be
// unique and driver kinds known; these are validated at Start, not here,
// matching the teacher's fail-at-start-not-at-construct style.
func New(configs []model.DeviceConfig) *IOManager {
	return &IOManager{configs: configs}
}

// Start is idempotent: calling it while already running is a no-op. It
// constructs one AcquisitionWorker per device (failing the whole start with
// ConfigError on a duplicate name or unknown driver) and a fresh FanOut that
// every worker's poll feeds.
func (m *IOManager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return nil
	}

	seen := make(map[string]bool, len(m.configs))
	for _, c := range m.configs {
		if seen[c.Name] {
			return &errs.ConfigError{Msg: fmt.Sprintf("duplicate device name %q", c.Name)}
		}
		seen[c.Name] = true
	}

	fo := fanout.New()
	workers := make(map[string]*worker.Worker, len(m.configs))
	order := make([]string, 0, len(m.configs))

	for _, c := range m.configs {
		drv, err := buildDriver(c)
		if err != nil {
			return err
		}
		hz, err := c.SamplingRate.In("Hz")
		if err != nil || hz <= 0 {
			return &errs.ConfigError{Msg: fmt.Sprintf("device %q: invalid sampling rate", c.Name)}
		}
		period := time.Duration(float64(time.Second) / hz)

		name := c.Name
		w := worker.New(name, drv, period, quantity.Kelvin(0), func(pv model.ProcessValues) {
			fo.Publish(pv)
		})
		workers[name] = w
		order = append(order, name)
	}

	for _, name := range order {
		workers[name].Start(ctx)
	}

	m.workers = workers
	m.order = order
	m.fanOut = fo
	m.running = true
	return nil
}

func buildDriver(c model.DeviceConfig) (driver.ControllerDriver, error) {
	switch c.Driver {
	case model.DriverSimulate:
		return driver.NewSimulator(quantity.Celsius(20), quantity.Celsius(20)), nil
	case model.DriverGeneric, model.DriverModel3208:
		b := bus.Open(c.Connection.Port, c.Connection.BaudRate)
		return driver.NewGeneric(b, c.UnitAddress), nil
	default:
		return nil, &errs.ConfigError{Msg: fmt.Sprintf("device %q: unknown driver %q", c.Name, c.Driver)}
	}
}

// Stop completes the FanOut, cancels and joins every worker, and clears
// state. Safe to call when already stopped.
func (m *IOManager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	workers := m.workers
	order := m.order
	fo := m.fanOut
	m.running = false
	m.workers = nil
	m.order = nil
	m.fanOut = nil
	m.mu.Unlock()

	fo.Complete()
	for _, name := range order {
		workers[name].Stop()
	}
}

func (m *IOManager) worker(name string) (*worker.Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.running {
		return nil, false
	}
	w, ok := m.workers[name]
	return w, ok
}

// Subscribe registers a new FanOut subscriber. It fails if the manager isn't
// running.
func (m *IOManager) Subscribe() (<-chan model.ProcessValues, func(), error) {
	m.mu.Lock()
	fo := m.fanOut
	running := m.running
	m.mu.Unlock()
	if !running {
		return nil, nil, &errs.NotRunning{}
	}
	stream, cancel, ok := fo.Subscribe()
	if !ok {
		return nil, nil, &errs.NotRunning{}
	}
	return stream, cancel, nil
}

// Toggle routes toggleRemoteSetpoint(device, state).
func (m *IOManager) Toggle(ctx context.Context, device string, state driver.RemoteSetpointState) error {
	w, ok := m.worker(device)
	if !ok {
		return &errs.UnknownDevice{Name: device}
	}
	return w.ToggleRemoteSetpoint(ctx, state)
}

// SetRemote routes setRemoteSetpoint(device, value).
func (m *IOManager) SetRemote(device string, value quantity.Quantity) error {
	w, ok := m.worker(device)
	if !ok {
		return &errs.UnknownDevice{Name: device}
	}
	w.SetRemoteSetpoint(value)
	return nil
}

// StartRamp routes startRamp(device, target, rate).
func (m *IOManager) StartRamp(ctx context.Context, device string, target, rate quantity.Quantity) (<-chan quantity.Quantity, error) {
	w, ok := m.worker(device)
	if !ok {
		return nil, &errs.UnknownDevice{Name: device}
	}
	return w.StartRamp(ctx, target, rate)
}

// StopRamp routes stopTemperatureRamp(device).
func (m *IOManager) StopRamp(device string) error {
	w, ok := m.worker(device)
	if !ok {
		return &errs.UnknownDevice{Name: device}
	}
	w.StopRamp()
	return nil
}

// Ack routes acknowledgeAllAlarms(device); device may be AllDevices ("*")
// to acknowledge every configured device.
func (m *IOManager) Ack(ctx context.Context, device string) error {
	if device == AllDevices {
		m.mu.Lock()
		order := append([]string(nil), m.order...)
		workers := m.workers
		running := m.running
		m.mu.Unlock()
		if !running {
			return &errs.NotRunning{}
		}
		for _, name := range order {
			if err := workers[name].AcknowledgeAllAlarms(ctx); err != nil {
				return err
			}
		}
		return nil
	}
	w, ok := m.worker(device)
	if !ok {
		return &errs.UnknownDevice{Name: device}
	}
	return w.AcknowledgeAllAlarms(ctx)
}

// Devices lists currently configured device names, in configuration order.
func (m *IOManager) Devices() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

// Running reports whether Start has been called without a matching Stop.
func (m *IOManager) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}
